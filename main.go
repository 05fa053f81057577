package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"

	"github.com/charmbracelet/fang"
	"github.com/desmos-typeset/cli/cmd"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		pterm.Warning.Printf("Ignoring .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := fang.Execute(ctx, cmd.Root(), fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}
