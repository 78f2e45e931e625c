package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/urfave/cli/v3"
)

func evictCommand() *cli.Command {
	var cfg config
	var feedbackID string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "feedback-id",
			Usage:       "Evict by originating feedback ID instead of cache key",
			Destination: &feedbackID,
		},
	}
	flags = append(flags, cacheFlags(&cfg)...)

	return &cli.Command{
		Name:      "evict",
		Usage:     "Remove a cache entry",
		ArgsUsage: "[cache-key]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			key := model.CacheKey(c.Args().First())
			if feedbackID != "" {
				entry, err := store.GetByFeedbackID(ctx, model.FeedbackID(feedbackID))
				if err != nil {
					return err
				}
				if entry == nil {
					return goerr.New("no cache entry for feedback", goerr.V("feedback_id", feedbackID))
				}
				key = entry.Key
			}
			if key == "" {
				return goerr.New("cache-key argument or --feedback-id is required")
			}

			if err := store.Evict(ctx, key); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Evicted: %s\n", key)
			return nil
		},
	}
}
