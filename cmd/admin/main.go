package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cryptexdrive/internal/admin"
	"github.com/dmitrijs2005/cryptexdrive/internal/flagx"
	"github.com/dmitrijs2005/cryptexdrive/internal/prompt"
	"github.com/dmitrijs2005/cryptexdrive/internal/server"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, admin.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg := config.LoadConfig()

	args := flagx.Positional(os.Args[1:])
	if len(args) == 0 {
		return admin.ErrUsage
	}

	logger, err := server.NewLogger(cfg)
	if err != nil {
		return err
	}

	core, err := server.NewCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	return admin.NewTool(core.Credentials, core.Files, prompt.New(os.Stdin, os.Stdout)).Run(ctx, args)
}
