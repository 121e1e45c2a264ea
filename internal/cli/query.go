package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/complaint-analyst/internal/bootstrap"
	"github.com/kirillkom/complaint-analyst/internal/core/domain"
)

const excerptRunes = 240

func newSearchCommand(e *env) *cobra.Command {
	var (
		product string
		topK    int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the complaint excerpts closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if topK <= 0 {
				topK = e.cfg.RAGTopK
			}
			app, err := e.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			query := strings.Join(args, " ")
			results, err := app.Retriever.Search(cmd.Context(), query, topK, domain.NormalizeProductFilter(product))
			if err != nil {
				return err
			}
			return e.report(cmd, map[string]any{"results": results, "count": len(results)}, func(w io.Writer) {
				printResults(w, results)
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", "", "restrict to a product, e.g. \"Credit card\"")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of excerpts; defaults to RAG_TOP_K")
	return cmd
}

func newAskCommand(e *env) *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the complaint index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			answer, err := app.Pipeline.Query(cmd.Context(), strings.Join(args, " "), product)
			if err != nil {
				return err
			}
			return e.report(cmd, answer, func(w io.Writer) {
				fmt.Fprintln(w, answer.Answer)
				if answer.SynthesisStatus != domain.SynthesisOK {
					warnColor.Fprintf(w, "(synthesis %s)\n", answer.SynthesisStatus)
				}
				if len(answer.SourceDocuments) > 0 {
					fmt.Fprintln(w)
					headingColor.Fprintln(w, "Sources")
					printResults(w, answer.SourceDocuments)
				}
			})
		},
	}
	cmd.Flags().StringVar(&product, "product", domain.AllProducts, "product scope")
	return cmd
}

func newRecentQueriesCommand(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent-queries",
		Short: "List the latest questions recorded by the query log worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			queryLog, err := bootstrap.NewQueryLog(cmd.Context(), e.cfg, false)
			if err != nil {
				return err
			}
			defer queryLog.Close()

			events, err := queryLog.Recorder.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return e.report(cmd, events, func(w io.Writer) {
				for _, ev := range events {
					mutedColor.Fprint(w, ev.CreatedAt.Local().Format(time.DateTime), " ")
					fmt.Fprintf(w, "%q", ev.Question)
					if ev.ProductFilter != "" {
						fmt.Fprintf(w, " [%s]", ev.ProductFilter)
					}
					mutedColor.Fprintf(w, " results=%d top=%.3f %s %.0fms\n", ev.ResultCount, ev.TopScore, ev.SynthesisStatus, ev.DurationMS)
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events")
	return cmd
}

func printResults(w io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		mutedColor.Fprintln(w, "no matching complaint excerpts")
		return
	}
	for i, r := range results {
		headingColor.Fprintf(w, "[%d] %s", i+1, r.Product)
		mutedColor.Fprintf(w, "  score=%.3f id=%s\n", r.Score, r.ChunkID)
		fmt.Fprintln(w, "   ", excerpt(r.Text, excerptRunes))
	}
}

func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
