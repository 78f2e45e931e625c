package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "murmur",
		Usage: "Deduplicating dispatch engine for customer feedback analysis",
		Commands: []*cli.Command{
			processCommand(),
			serveCommand(),
			showCommand(),
			evictCommand(),
			reportCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
