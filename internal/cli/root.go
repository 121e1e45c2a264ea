// Package cli implements complaintctl, the offline tool that prepares the
// complaint corpus, builds and ships index generations, and queries them.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/complaint-analyst/internal/bootstrap"
	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/observability/logging"
)

const serviceName = "complaintctl"

// env is the state shared by every subcommand once the root pre-run has loaded config.
type env struct {
	cfg      config.Config
	logLevel string
	jsonOut  bool
	indexDir string
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	okColor      = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	mutedColor   = color.New(color.FgHiBlack)
)

func NewRootCommand(version string) *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Prepare, index and query consumer complaint narratives",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			e.cfg = config.Load()
			if cmd.Flags().Changed("index-dir") {
				e.cfg.IndexDir = e.indexDir
			}
			level := e.cfg.LogLevel
			if cmd.Flags().Changed("log-level") {
				level = e.logLevel
			}
			slog.SetDefault(logging.NewCLILogger(serviceName, level))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "info", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().BoolVar(&e.jsonOut, "json", false, "print machine-readable JSON")
	root.PersistentFlags().StringVar(&e.indexDir, "index-dir", "", "index directory; overrides INDEX_DIR")

	root.AddCommand(
		newSampleCommand(e),
		newPrepareCommand(e),
		newBuildIndexCommand(e),
		newImportParquetCommand(e),
		newVerifyCommand(e),
		newPublishIndexCommand(e),
		newFetchIndexCommand(e),
		newPublishQdrantCommand(e),
		newSearchCommand(e),
		newAskCommand(e),
		newRecentQueriesCommand(e),
	)
	return root
}

// Execute runs complaintctl and returns the process exit code.
func Execute(version string) int {
	if err := NewRootCommand(version).Execute(); err != nil {
		failColor.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// app bootstraps the query side for commands that search the loaded index.
func (e *env) app(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, e.cfg, bootstrap.Options{ClientName: serviceName})
	if err != nil {
		return nil, err
	}
	if !app.Ready() {
		app.Close()
		return nil, fmt.Errorf("system not ready: %w", app.LoadErr)
	}
	return app, nil
}

func (e *env) printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}

// report prints payload as JSON under --json, otherwise runs the human renderer.
func (e *env) report(cmd *cobra.Command, payload any, human func(w io.Writer)) error {
	if e.jsonOut {
		return e.printJSON(cmd.OutOrStdout(), payload)
	}
	human(cmd.OutOrStdout())
	return nil
}
