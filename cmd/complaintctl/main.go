package main

import (
	"os"

	"github.com/kirillkom/complaint-analyst/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
