package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/murmur/pkg/adapter"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func processCommand() *cli.Command {
	var cfg config
	var input string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing the feedback batch (default: stdin)",
			Destination: &input,
		},
	}
	flags = append(flags, cacheFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, dispatchFlags(&cfg)...)

	return &cli.Command{
		Name:  "process",
		Usage: "Analyze a batch of feedback records",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			req, err := readBatchRequest(input)
			if err != nil {
				return err
			}

			coordinator, closeSink, err := cfg.newCoordinator(ctx)
			if err != nil {
				return err
			}
			defer closeSink()

			outcomes, err := coordinator.ProcessBatch(ctx, req.Feedback)
			if err != nil {
				return err
			}

			resp := NewBatchResponse(outcomes)

			if storage, err := cfg.newStorage(ctx); err != nil {
				return err
			} else if storage != nil {
				key, err := archiveReport(ctx, storage, resp)
				if err != nil {
					logging.From(ctx).Warn("failed to archive batch report", "error", err)
				} else {
					logging.From(ctx).Info("archived batch report", "key", key)
				}
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(resp)
		},
	}
}

func readBatchRequest(path string) (*BatchRequest, error) {
	var data []byte
	var err error

	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read batch from stdin")
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read batch file", goerr.V("path", path))
		}
	}

	return ParseBatchRequest(data)
}

// archiveReport stores the batch response under a timestamped object key
// and returns the key
func archiveReport(ctx context.Context, storage adapter.Storage, resp *BatchResponse) (string, error) {
	key := fmt.Sprintf("reports/%s.json", time.Now().UTC().Format("20060102T150405Z"))

	w, err := storage.Put(ctx, key)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open report object", goerr.V("key", key))
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write report", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize report", goerr.V("key", key))
	}

	return key, nil
}
