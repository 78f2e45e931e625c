package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/adapter"
	"github.com/urfave/cli/v3"
)

func reportCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket holding archived batch reports",
			Sources:     cli.EnvVars("MURMUR_REPORT_BUCKET"),
			Destination: &cfg.bucket,
		},
	}

	return &cli.Command{
		Name:      "report",
		Usage:     "Fetch an archived batch report",
		ArgsUsage: "<object-key>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			key := c.Args().First()
			if key == "" {
				return goerr.New("object-key argument is required")
			}

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}
			if storage == nil {
				return goerr.New("bucket is required")
			}

			return fetchReport(ctx, storage, key, c.Root().Writer)
		},
	}
}

// fetchReport streams an archived batch report to w
func fetchReport(ctx context.Context, storage adapter.Storage, key string, w io.Writer) error {
	r, err := storage.Get(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch report", goerr.V("key", key))
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		return goerr.Wrap(err, "failed to read report", goerr.V("key", key))
	}
	return nil
}
