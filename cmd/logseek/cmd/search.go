package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/logseek/logseek/internal/gate"
	"github.com/logseek/logseek/internal/output"
	"github.com/logseek/logseek/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
	syntax bool   // pass the query to the index grammar unsanitized
	caller string // caller id for admission gating
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search imported records",
		Long: `Search imported records with free-text queries.

Queries are matched case-insensitively against record content. Quoted
spans match as phrases and a trailing * matches by prefix; all other
punctuation is ignored. Results are ordered by relevance.

Examples:
  logseek search "connection refused"
  logseek search timeout --limit 5
  logseek search 'postgre*' --format json
  logseek search 'alpha AND beta' --syntax`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.syntax, "syntax", false, "Interpret the query in the index's native syntax")
	cmd.Flags().StringVar(&opts.caller, "caller", "", "Caller id for rate limiting (used by wrapping front ends)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var admission search.AdmissionGate
	if interval, err := time.ParseDuration(cfg.Gate.RateLimit); err == nil && interval > 0 {
		if g, err := gate.New(gate.Config{
			MinInterval: interval,
			MaxCallers:  cfg.Gate.MaxCallers,
		}); err == nil {
			admission = g
		}
	}

	engine := search.New(s, admission, search.Config{
		DefaultLimit: cfg.Search.Limit,
	})

	page, err := engine.Search(ctx, query, search.Options{
		Limit:      opts.limit,
		Structured: opts.syntax,
		Caller:     opts.caller,
	})
	if err != nil {
		return err
	}

	switch opts.format {
	case "json":
		return printResultsJSON(cmd, query, page)
	default:
		printResultsText(cmd, query, page)
		return nil
	}
}

// searchResultJSON is the JSON shape for one search hit.
type searchResultJSON struct {
	ID         int64   `json:"id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	InsertedAt string  `json:"inserted_at"`
}

func printResultsJSON(cmd *cobra.Command, query string, page search.Page) error {
	payload := struct {
		Query   string             `json:"query"`
		Count   int                `json:"count"`
		Total   int64              `json:"total"`
		Results []searchResultJSON `json:"results"`
	}{
		Query:   query,
		Count:   len(page.Hits),
		Total:   page.Total,
		Results: make([]searchResultJSON, 0, len(page.Hits)),
	}
	for _, r := range page.Hits {
		payload.Results = append(payload.Results, searchResultJSON{
			ID:         r.Record.ID,
			Content:    r.Record.Content,
			Score:      r.Score,
			InsertedAt: r.Record.InsertedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func printResultsText(cmd *cobra.Command, query string, page search.Page) {
	out := output.New(cmd.OutOrStdout())

	if len(page.Hits) == 0 {
		out.Statusf("🔍", "no results for %q", query)
		return
	}

	out.Statusf("🔍", "%d results for %q", len(page.Hits), query)
	out.Newline()
	for i, r := range page.Hits {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, truncate(r.Record.Content, maxDisplayWidth))
	}
	if overflow := page.Total - int64(len(page.Hits)); overflow > 0 {
		out.Newline()
		out.Statusf("…", "+%d more (raise --limit to see them)", overflow)
	}
}

// maxDisplayWidth keeps one result on one terminal line-ish; full
// content is always available via --format json.
const maxDisplayWidth = 200

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
