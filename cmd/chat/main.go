package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/kirillkom/complaint-analyst/internal/adapters/tui"
	"github.com/kirillkom/complaint-analyst/internal/bootstrap"
	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/observability/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chat error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()
	// The TUI owns the terminal, so logs below warn are dropped unless debugging.
	level := "warn"
	if cfg.LogLevel == "debug" {
		level = "debug"
	}
	slog.SetDefault(logging.NewCLILogger("chat", level))

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Events:     true,
		ClientName: "complaint-analyst-chat",
	})
	if err != nil {
		return err
	}
	defer app.Close()

	model := tui.New(app.QueryService(), tui.Options{LoadErr: app.LoadErr})
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
