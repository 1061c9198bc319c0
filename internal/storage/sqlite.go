package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver registered as "sqlite"

	"github.com/an0mium/aragora/internal/aragoraerr"
	"github.com/an0mium/aragora/internal/models"
)

// SQLiteStore implements Adapter over an embedded SQLite database in
// WAL mode, grounded on original_source/aragora/ranking/database.py's
// EloDatabase (fresh-connection-per-operation, WAL journal) rather than
// the teacher's own Postgres/pgx path — spec §1 leaves storage
// technology unspecified, and the original implementation it was
// distilled from is embedded SQLite, not a client/server RDBMS.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path and enables WAL mode.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "open sqlite", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer discipline per spec §5
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "enable WAL", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "enable foreign keys", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchemaTable(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ensureSchemaTable() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
		module TEXT PRIMARY KEY,
		version INTEGER NOT NULL
	)`)
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "create schema_versions", err)
	}
	return nil
}

// schema modules, mirroring spec §6's "three logical schemas (core,
// agents, memory)".
const (
	ModuleCore   = "core"
	ModuleAgents = "agents"
	ModuleMemory = "memory"
)

// migrations lists forward-only DDL steps per module, applied in order.
var migrations = map[string][]string{
	ModuleCore: {
		`CREATE TABLE IF NOT EXISTS debates (
			debate_id TEXT PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			task TEXT NOT NULL,
			agents TEXT NOT NULL,
			rounds_planned INTEGER NOT NULL,
			rounds_used INTEGER NOT NULL DEFAULT 0,
			consensus_reached INTEGER NOT NULL DEFAULT 0,
			confidence REAL,
			final_artifact TEXT,
			state TEXT NOT NULL,
			outcome TEXT,
			created_at TEXT NOT NULL,
			sealed_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS debate_messages (
			debate_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			agent TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			confidence REAL,
			citations TEXT,
			cognitive_role TEXT,
			created_at TEXT NOT NULL,
			PRIMARY KEY (debate_id, round, agent, role)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			debate_id TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			round INTEGER,
			agent TEXT,
			data TEXT,
			PRIMARY KEY (debate_id, seq)
		)`,
	},
	ModuleAgents: {
		`CREATE TABLE IF NOT EXISTS agent_ratings (
			agent TEXT NOT NULL,
			domain TEXT NOT NULL,
			elo REAL NOT NULL DEFAULT 1500,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			draws INTEGER NOT NULL DEFAULT 0,
			consistency REAL NOT NULL DEFAULT 1,
			PRIMARY KEY (agent, domain)
		)`,
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			debate_id TEXT NOT NULL,
			participants TEXT NOT NULL,
			winner TEXT,
			elo_changes TEXT NOT NULL,
			domain TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	},
	ModuleMemory: {
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			claim TEXT NOT NULL,
			confidence REAL NOT NULL,
			domain TEXT NOT NULL,
			debate_id TEXT NOT NULL,
			round INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			semantic_centroid TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS flips (
			id TEXT PRIMARY KEY,
			agent TEXT NOT NULL,
			original TEXT NOT NULL,
			new TEXT NOT NULL,
			similarity REAL NOT NULL,
			type TEXT NOT NULL,
			domain TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	},
}

func (s *SQLiteStore) SchemaVersion(ctx context.Context, module string) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_versions WHERE module = ?`, module).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read schema version", err)
	}
	return v, nil
}

// Migrate applies module's DDL steps up to index `to` (1-based, matching
// len(migrations[module]) at full version) and records the new version.
// Migrations are forward-only: a lower `to` than the current version is
// rejected as a schema mismatch rather than attempting to downgrade.
func (s *SQLiteStore) Migrate(ctx context.Context, module string, to int) error {
	steps, ok := migrations[module]
	if !ok {
		return aragoraerr.New(aragoraerr.CodeInput, "unknown schema module: "+module)
	}
	if to > len(steps) {
		return aragoraerr.New(aragoraerr.CodeInput, "module has no migration step "+fmt.Sprint(to))
	}

	current, err := s.SchemaVersion(ctx, module)
	if err != nil {
		return err
	}
	if to < current {
		return aragoraerr.ErrSchemaMismatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "begin migration tx", err)
	}
	defer tx.Rollback()

	for i := current; i < to; i++ {
		if _, err := tx.ExecContext(ctx, steps[i]); err != nil {
			return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "apply migration step", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_versions (module, version) VALUES (?, ?)
		ON CONFLICT(module) DO UPDATE SET version = excluded.version`, module, to); err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "record schema version", err)
	}
	return tx.Commit()
}

// MigrateAll applies every module to its latest known version; callers
// use this at startup. The engine refuses to start if a schema version
// is newer than it understands (checked by comparing against len(steps))
// or older than its minimum supported (always 0 here, so never fails
// on that condition — there has been no breaking migration yet).
func (s *SQLiteStore) MigrateAll(ctx context.Context) error {
	for module, steps := range migrations {
		current, err := s.SchemaVersion(ctx, module)
		if err != nil {
			return err
		}
		if current > len(steps) {
			return aragoraerr.Wrap(aragoraerr.CodeIntegrity,
				fmt.Sprintf("module %s schema version %d is newer than this binary understands (%d)", module, current, len(steps)), nil)
		}
		if err := s.Migrate(ctx, module, len(steps)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, e *models.Event) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "begin tx", err)
	}
	defer tx.Rollback()

	var maxSeq uint64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events WHERE debate_id = ?`, e.DebateID)
	if err := row.Scan(&maxSeq); err != nil {
		return 0, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read max seq", err)
	}
	seq := maxSeq + 1

	data, err := json.Marshal(e.Data)
	if err != nil {
		return 0, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "marshal event data", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO events (debate_id, seq, type, timestamp, round, agent, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.DebateID, seq, string(e.Type), e.Timestamp.Format(time.RFC3339Nano), e.Round, e.Agent, string(data))
	if err != nil {
		return 0, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "insert event", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "commit event append", err)
	}
	return seq, nil
}

func (s *SQLiteStore) CreateDebate(ctx context.Context, d *models.Debate) error {
	agents, err := json.Marshal(d.Agents)
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "marshal agents", err)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO debates
		(debate_id, slug, task, agents, rounds_planned, rounds_used, consensus_reached, state, created_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		d.DebateID, d.Slug, d.Task, string(agents), d.RoundsPlanned, string(models.DebateCreated), d.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "duplicate slug or write failure", err)
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m *models.DebateMessage) error {
	citations, _ := json.Marshal(m.Citations)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO debate_messages
		(debate_id, round, agent, role, content, confidence, citations, cognitive_role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.DebateID, m.Round, m.Agent, m.Role, m.Content, m.Confidence, string(citations), m.CognitiveRole, m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "duplicate message or write failure", err)
	}
	_, _ = s.db.ExecContext(ctx, `UPDATE debates SET rounds_used = MAX(rounds_used, ?) WHERE debate_id = ?`, m.Round, m.DebateID)
	return nil
}

// SealDebate is idempotent for a repeated identical final payload and
// rejects a second seal whose payload differs (spec §4.5, testable
// property 6).
func (s *SQLiteStore) SealDebate(ctx context.Context, debateID string, final *models.FinalArtifact, outcome models.Outcome, confidence *float64) error {
	var existingState, existingArtifact string
	err := s.db.QueryRowContext(ctx, `SELECT state, COALESCE(final_artifact, '') FROM debates WHERE debate_id = ?`, debateID).
		Scan(&existingState, &existingArtifact)
	if err == sql.ErrNoRows {
		return aragoraerr.New(aragoraerr.CodeInput, "unknown debate")
	}
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read debate", err)
	}

	var artifactJSON []byte
	if final != nil {
		artifactJSON, err = json.Marshal(final)
		if err != nil {
			return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "marshal final artifact", err)
		}
	}

	if existingState == string(models.DebateTerminal) {
		if string(artifactJSON) != existingArtifact {
			return aragoraerr.New(aragoraerr.CodeIntegrity, "seal_debate called twice with different payload")
		}
		return nil // idempotent no-op
	}

	_, err = s.db.ExecContext(ctx, `UPDATE debates SET state = ?, outcome = ?, consensus_reached = ?, confidence = ?, final_artifact = ?, sealed_at = ?
		WHERE debate_id = ?`,
		string(models.DebateTerminal), string(outcome), outcome == models.OutcomeConsensus, confidence, string(artifactJSON),
		time.Now().Format(time.RFC3339Nano), debateID)
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "seal debate", err)
	}
	return nil
}

// RecordMatch writes m and every participant's updated AgentRating as
// one atomic transaction (spec §4.5 invariant: reads never observe a
// partially applied Match).
func (s *SQLiteStore) RecordMatch(ctx context.Context, m *models.Match, ratings []models.AgentRating) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "begin match tx", err)
	}
	defer tx.Rollback()

	participants, _ := json.Marshal(m.Participants)
	eloChanges, _ := json.Marshal(m.EloChanges)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO matches (id, debate_id, participants, winner, elo_changes, domain, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.DebateID, string(participants), m.Winner, string(eloChanges), m.Domain, m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "insert match", err)
	}

	// wins/losses/draws on ratings are this match's pairwise deltas
	// (ranking.TallyOutcome), not absolute totals, so the upsert
	// accumulates them onto whatever the agent already has (spec §3's
	// monotone counters invariant). consistency is derived from the
	// flip set, not from match outcomes, so it's left untouched here.
	for _, r := range ratings {
		_, err = tx.ExecContext(ctx, `INSERT INTO agent_ratings (agent, domain, elo, wins, losses, draws, consistency)
			VALUES (?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(agent, domain) DO UPDATE SET
				elo = excluded.elo,
				wins = agent_ratings.wins + excluded.wins,
				losses = agent_ratings.losses + excluded.losses,
				draws = agent_ratings.draws + excluded.draws`,
			r.Agent, r.Domain, r.Elo, r.Wins, r.Losses, r.Draws)
		if err != nil {
			return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "upsert agent rating", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) RecordPosition(ctx context.Context, p *models.Position) error {
	centroid, _ := json.Marshal(p.SemanticCentroid)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO positions
		(id, agent, claim, confidence, domain, debate_id, round, outcome, semantic_centroid, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Agent, p.Claim, p.Confidence, p.Domain, p.DebateID, p.Round, string(p.Outcome), string(centroid), p.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "insert position", err)
	}
	return nil
}

// RecordFlip persists f and recomputes the agent's consistency score in
// the same transaction, so a read immediately after never observes a
// flip without its effect on consistency (spec §4.7: "consistency score
// = 1 − (contradictions + retractions) / max(1, total_positions)").
func (s *SQLiteStore) RecordFlip(ctx context.Context, f *models.Flip) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "begin flip tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO flips (id, agent, original, new, similarity, type, domain, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Agent, f.Original, f.New, f.Similarity, string(f.Type), f.Domain, f.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "insert flip", err)
	}
	if err := s.recomputeConsistency(ctx, tx, f.Agent, f.Domain); err != nil {
		return err
	}
	return tx.Commit()
}

// recomputeConsistency derives spec §4.7's consistency score from the
// agent's recorded positions and flips in domain, and persists it.
func (s *SQLiteStore) recomputeConsistency(ctx context.Context, tx *sql.Tx, agent, domain string) error {
	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions WHERE agent = ? AND domain = ?`,
		agent, domain).Scan(&total); err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "count positions", err)
	}
	var flipped int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM flips WHERE agent = ? AND domain = ? AND type IN (?, ?)`,
		agent, domain, string(models.FlipContradiction), string(models.FlipRetraction)).Scan(&flipped); err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "count flips", err)
	}
	denom := total
	if denom < 1 {
		denom = 1
	}
	consistency := 1 - float64(flipped)/float64(denom)

	_, err := tx.ExecContext(ctx, `INSERT INTO agent_ratings (agent, domain, elo, wins, losses, draws, consistency)
		VALUES (?, ?, 1500, 0, 0, 0, ?)
		ON CONFLICT(agent, domain) DO UPDATE SET consistency = excluded.consistency`,
		agent, domain, consistency)
	if err != nil {
		return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "update consistency", err)
	}
	return nil
}

func (s *SQLiteStore) GetDebate(ctx context.Context, slug string) (*models.Debate, []models.DebateMessage, error) {
	d := &models.Debate{}
	var agentsJSON, artifactJSON sql.NullString
	var confidence sql.NullFloat64
	var outcome sql.NullString
	var sealedAt sql.NullString
	var createdAt string

	row := s.db.QueryRowContext(ctx, `SELECT debate_id, slug, task, agents, rounds_planned, rounds_used,
		consensus_reached, confidence, final_artifact, state, outcome, created_at, sealed_at
		FROM debates WHERE slug = ?`, slug)
	var consensusReached int
	if err := row.Scan(&d.DebateID, &d.Slug, &d.Task, &agentsJSON, &d.RoundsPlanned, &d.RoundsUsed,
		&consensusReached, &confidence, &artifactJSON, &d.State, &outcome, &createdAt, &sealedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, aragoraerr.New(aragoraerr.CodeInput, "unknown debate")
		}
		return nil, nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read debate", err)
	}
	d.ConsensusReached = consensusReached != 0
	if agentsJSON.Valid {
		_ = json.Unmarshal([]byte(agentsJSON.String), &d.Agents)
	}
	if confidence.Valid {
		d.Confidence = &confidence.Float64
	}
	if artifactJSON.Valid && artifactJSON.String != "" {
		d.FinalArtifact = &models.FinalArtifact{}
		_ = json.Unmarshal([]byte(artifactJSON.String), d.FinalArtifact)
	}
	if outcome.Valid {
		d.Outcome = models.Outcome(outcome.String)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := s.db.QueryContext(ctx, `SELECT debate_id, round, agent, role, content, confidence, citations, cognitive_role, created_at
		FROM debate_messages WHERE debate_id = ? ORDER BY round ASC`, d.DebateID)
	if err != nil {
		return nil, nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read messages", err)
	}
	defer rows.Close()

	var messages []models.DebateMessage
	for rows.Next() {
		var m models.DebateMessage
		var conf sql.NullFloat64
		var citationsJSON sql.NullString
		var createdAtStr string
		if err := rows.Scan(&m.DebateID, &m.Round, &m.Agent, &m.Role, &m.Content, &conf, &citationsJSON, &m.CognitiveRole, &createdAtStr); err != nil {
			return nil, nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "scan message", err)
		}
		if conf.Valid {
			m.Confidence = &conf.Float64
		}
		if citationsJSON.Valid {
			_ = json.Unmarshal([]byte(citationsJSON.String), &m.Citations)
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		messages = append(messages, m)
	}
	return d, messages, nil
}

func (s *SQLiteStore) ReadRecent(ctx context.Context, kind RecentKind, limit int, filter RecentFilter) (interface{}, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	switch kind {
	case RecentDebates:
		return s.recentDebates(ctx, limit)
	case RecentMatches:
		return s.recentMatches(ctx, limit, filter)
	case RecentFlips:
		return s.recentFlips(ctx, limit, filter)
	default:
		return nil, aragoraerr.New(aragoraerr.CodeInput, "unsupported kind for read_recent")
	}
}

func (s *SQLiteStore) recentDebates(ctx context.Context, limit int) ([]models.Debate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT debate_id, slug, task, rounds_planned, rounds_used, consensus_reached, state, created_at
		FROM debates ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read recent debates", err)
	}
	defer rows.Close()
	var out []models.Debate
	for rows.Next() {
		var d models.Debate
		var consensusReached int
		var createdAt string
		if err := rows.Scan(&d.DebateID, &d.Slug, &d.Task, &d.RoundsPlanned, &d.RoundsUsed, &consensusReached, &d.State, &createdAt); err != nil {
			return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "scan debate", err)
		}
		d.ConsensusReached = consensusReached != 0
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, d)
	}
	return out, nil
}

func (s *SQLiteStore) recentMatches(ctx context.Context, limit int, filter RecentFilter) ([]models.Match, error) {
	query := `SELECT id, debate_id, participants, winner, elo_changes, domain, created_at FROM matches`
	args := []interface{}{}
	if filter.Domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, filter.Domain)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read recent matches", err)
	}
	defer rows.Close()
	var out []models.Match
	for rows.Next() {
		var m models.Match
		var participantsJSON, eloChangesJSON, createdAt string
		if err := rows.Scan(&m.ID, &m.DebateID, &participantsJSON, &m.Winner, &eloChangesJSON, &m.Domain, &createdAt); err != nil {
			return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "scan match", err)
		}
		_ = json.Unmarshal([]byte(participantsJSON), &m.Participants)
		_ = json.Unmarshal([]byte(eloChangesJSON), &m.EloChanges)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, m)
	}
	return out, nil
}

func (s *SQLiteStore) recentFlips(ctx context.Context, limit int, filter RecentFilter) ([]models.Flip, error) {
	query := `SELECT id, agent, original, new, similarity, type, domain, created_at FROM flips`
	args := []interface{}{}
	if filter.Agent != "" {
		query += ` WHERE agent = ?`
		args = append(args, filter.Agent)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read recent flips", err)
	}
	defer rows.Close()
	var out []models.Flip
	for rows.Next() {
		var f models.Flip
		var createdAt string
		if err := rows.Scan(&f.ID, &f.Agent, &f.Original, &f.New, &f.Similarity, &f.Type, &f.Domain, &createdAt); err != nil {
			return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "scan flip", err)
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, f)
	}
	return out, nil
}

func (s *SQLiteStore) Leaderboard(ctx context.Context, domain string, limit int) ([]models.AgentRating, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `SELECT agent, domain, elo, wins, losses, draws, consistency FROM agent_ratings`
	args := []interface{}{}
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY elo DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read leaderboard", err)
	}
	defer rows.Close()
	var out []models.AgentRating
	for rows.Next() {
		var r models.AgentRating
		if err := rows.Scan(&r.Agent, &r.Domain, &r.Elo, &r.Wins, &r.Losses, &r.Draws, &r.Consistency); err != nil {
			return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "scan rating", err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLiteStore) AgentConsistency(ctx context.Context, agent, domain string) (*models.AgentRating, error) {
	query := `SELECT agent, domain, elo, wins, losses, draws, consistency FROM agent_ratings WHERE agent = ?`
	args := []interface{}{agent}
	if domain != "" {
		query += ` AND domain = ?`
		args = append(args, domain)
	}
	query += ` LIMIT 1`

	var r models.AgentRating
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&r.Agent, &r.Domain, &r.Elo, &r.Wins, &r.Losses, &r.Draws, &r.Consistency)
	if err == sql.ErrNoRows {
		return &models.AgentRating{Agent: agent, Domain: domain, Elo: 1500, Consistency: 1}, nil
	}
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read agent rating", err)
	}
	return &r, nil
}

func (s *SQLiteStore) RecentPositions(ctx context.Context, agent, domain string, limit int) ([]models.Position, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, agent, claim, confidence, domain, debate_id, round, outcome, semantic_centroid, created_at
		FROM positions WHERE agent = ?`
	args := []interface{}{agent}
	if domain != "" {
		query += ` AND domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "read recent positions", err)
	}
	defer rows.Close()
	var out []models.Position
	for rows.Next() {
		var p models.Position
		var centroidJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Agent, &p.Claim, &p.Confidence, &p.Domain, &p.DebateID, &p.Round, &p.Outcome, &centroidJSON, &createdAt); err != nil {
			return nil, aragoraerr.Wrap(aragoraerr.CodeIntegrity, "scan position", err)
		}
		if centroidJSON.Valid {
			_ = json.Unmarshal([]byte(centroidJSON.String), &p.SemanticCentroid)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, p)
	}
	return out, nil
}

var _ Adapter = (*SQLiteStore)(nil)
