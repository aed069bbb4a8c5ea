package main

import (
	"context"
	"errors"
	"io/ioutil"
	"log"
	"net/http"
	"time"

	"github.com/function61/cloudsqlbackup/pkg/cbworkflow"
	"github.com/function61/gokit/dynversion"
	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/gokit/stopper"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const maxEventSize = 1024 * 1024

// Pub/Sub push subscriptions redeliver on any non-2xx response. backup
// failures are handled (alerted) here, so only malformed input is rejected.
func newRouter(workflow *cbworkflow.Workflow, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	handleEvent := func(w http.ResponseWriter, r *http.Request) {
		body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxEventSize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			} else {
				http.Error(w, err.Error(), http.StatusBadRequest)
			}
			return
		}

		switch workflow.HandleEvent(r.Context(), body) {
		case cbworkflow.ResultInvalidInput:
			http.Error(w, "invalid backup request", http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}

	r.Post("/", handleEvent)
	r.Post("/pubsub/push", handleEvent)

	return r
}

func runServer(addr string, handler http.Handler, logger *log.Logger, stop *stopper.Stopper) {
	defer stop.Done()
	logl := logex.Levels(logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-stop.Signal

		// in-flight backups get to finish their retry sequence
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logl.Error.Printf("shutdown: %v", err)
		}
	}()

	logl.Info.Printf("listening on %s", addr)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logl.Error.Printf("ListenAndServe: %v", err)
	}

	logl.Info.Println("stopped")
}

func serveEntry() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Receive trigger events over HTTP (e.g. Pub/Sub push subscription)",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()
			logl := logex.Levels(logex.Prefix("main", rootLogger))

			registry := prometheus.NewRegistry()

			workflow, conf, err := workflowFromEnv(context.Background(), registry, rootLogger)
			exitIfError(err)

			workers := stopper.NewManager()

			go runServer(
				conf.ListenAddr,
				newRouter(workflow, registry),
				logex.Prefix("httpserver", rootLogger),
				workers.Stopper())

			logl.Info.Printf("Started %s", dynversion.Version)
			logl.Info.Printf("Got %s; stopping", <-ossignal.InterruptOrTerminate())

			workers.StopAllWorkersAndWait()
		},
	}
}
