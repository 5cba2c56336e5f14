// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/hubauth/internal/config"
	"codeberg.org/oliverandrich/hubauth/internal/server"
)

func main() {
	cmd := &cli.Command{
		Name:   "hubauth",
		Usage:  "Start the authentication and chat service",
		Flags:  config.Flags(),
		Action: server.Run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
