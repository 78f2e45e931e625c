package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	var (
		cfg        config
		feedbackID model.FeedbackID
		cacheKey   model.CacheKey
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "feedback-id",
			Aliases:     []string{"id"},
			Usage:       "Feedback ID whose cached entry to show",
			Destination: (*string)(&feedbackID),
		},
		&cli.StringFlag{
			Name:        "key",
			Aliases:     []string{"k"},
			Usage:       "Cache key to show",
			Destination: (*string)(&cacheKey),
		},
	}
	flags = append(flags, cacheFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show a cached analysis entry",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			var entry *model.CacheEntry
			switch {
			case cacheKey != "":
				entry, err = store.Get(ctx, cacheKey)
			case feedbackID != "":
				entry, err = store.GetByFeedbackID(ctx, feedbackID)
			default:
				return goerr.New("either --feedback-id or --key is required")
			}
			if err != nil {
				return goerr.Wrap(err, "failed to look up cache entry")
			}
			if entry == nil {
				return goerr.New("no cache entry found",
					goerr.V("feedback_id", feedbackID), goerr.V("key", cacheKey))
			}

			data, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal cache entry")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
			return nil
		},
	}
}
