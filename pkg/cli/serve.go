package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/murmur/pkg/model"
	"github.com/m-mizutani/murmur/pkg/usecase/dispatch"
	"github.com/m-mizutani/murmur/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var cfg config
	var addr string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("MURMUR_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, cacheFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, dispatchFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the batch analysis HTTP server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			coordinator, closeSink, err := cfg.newCoordinator(ctx)
			if err != nil {
				return err
			}
			defer closeSink()

			server := &http.Server{
				Addr:              addr,
				Handler:           newHandler(coordinator),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logging.Default().Warn("server shutdown failed", "error", err)
				}
			}()

			logging.From(ctx).Info("starting server", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}

// newHandler builds the HTTP surface: one batch endpoint plus health
func newHandler(coordinator *dispatch.Coordinator) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /v1/batch", func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		req, err := ParseBatchRequest(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		outcomes, err := coordinator.ProcessBatch(r.Context(), req.Feedback)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, dispatch.ErrBatchTooLarge) ||
				errors.Is(err, dispatch.ErrDuplicateFeedback) ||
				errors.Is(err, model.ErrEmptyFeedbackID) ||
				errors.Is(err, model.ErrEmptyFeedbackText) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(NewBatchResponse(outcomes)); err != nil {
			logging.From(r.Context()).Warn("failed to encode response", "error", err)
		}
	})

	return mux
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
