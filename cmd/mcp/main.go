package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/complaint-analyst/internal/adapters/mcp"
	"github.com/kirillkom/complaint-analyst/internal/bootstrap"
	"github.com/kirillkom/complaint-analyst/internal/config"
	"github.com/kirillkom/complaint-analyst/internal/observability/logging"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mcp error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the MCP protocol; logs go to stderr.
	slog.SetDefault(logging.NewCLILogger("mcp", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Events:     true,
		PullIndex:  true,
		ClientName: "complaint-analyst-mcp",
	})
	if err != nil {
		return err
	}
	defer app.Close()

	s := mcpadapter.NewServer(version, &mcpadapter.Tools{
		Searcher:    app.Searcher(),
		Query:       app.QueryService(),
		LoadErr:     app.LoadErr,
		DefaultTopK: cfg.RAGTopK,
	})
	return server.ServeStdio(s)
}
