package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var exportFormat string
var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <slug>",
	Short: "Export one debate's transcript as JSON, CSV, or HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "json, csv, or html")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	resp, err := fetchDebate(cmd, args[0])
	if err != nil {
		return err
	}

	out := os.Stdout
	if exportOut != "" {
		f, ferr := os.Create(exportOut)
		if ferr != nil {
			return &ExitError{Code: 1, Err: ferr}
		}
		defer f.Close()
		out = f
	}

	switch exportFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return &ExitError{Code: 1, Err: err}
		}
	case "csv":
		w := csv.NewWriter(out)
		_ = w.Write([]string{"round", "agent", "role", "confidence", "content"})
		for _, m := range resp.Messages {
			conf := ""
			if m.Confidence != nil {
				conf = strconv.FormatFloat(*m.Confidence, 'f', 2, 64)
			}
			_ = w.Write([]string{strconv.Itoa(m.Round), m.Agent, m.Role, conf, m.Content})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return &ExitError{Code: 1, Err: err}
		}
	case "html":
		fmt.Fprintf(out, "<html><head><title>%s</title></head><body>\n", html.EscapeString(resp.Debate.Slug))
		fmt.Fprintf(out, "<h1>%s</h1><p>state=%s outcome=%s</p>\n",
			html.EscapeString(resp.Debate.Task), resp.Debate.State, resp.Debate.Outcome)
		for _, m := range resp.Messages {
			fmt.Fprintf(out, "<div><strong>round %d — %s/%s</strong><p>%s</p></div>\n",
				m.Round, html.EscapeString(m.Agent), html.EscapeString(m.Role), html.EscapeString(m.Content))
		}
		fmt.Fprintln(out, "</body></html>")
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("unknown --format %q, want json, csv, or html", exportFormat)}
	}
	return nil
}
