package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/CAFxX/httpcompression"
	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/getsentry/flamegraph/internal/flamegraph"
	"github.com/getsentry/flamegraph/internal/httputil"
	"github.com/getsentry/flamegraph/internal/logutil"
	"github.com/getsentry/flamegraph/internal/storageprovider"
	"github.com/getsentry/flamegraph/internal/storageutil"
)

type environment struct {
	config ServiceConfig

	storage  storageutil.ObjectHandler
	closers  []func() error
	readJobs chan storageutil.ReadJob

	sessions *flamegraph.Store[*flamegraph.Session]
	loaders  *flamegraph.Store[*flamegraph.Loader]
}

var release string

func newEnvironment(ctx context.Context, config ServiceConfig) (*environment, error) {
	e := environment{
		config:   config,
		readJobs: make(chan storageutil.ReadJob, config.ReadWorkers),
		sessions: flamegraph.NewStore[*flamegraph.Session](config.SessionTTL),
		loaders:  flamegraph.NewStore[*flamegraph.Loader](config.SessionTTL),
	}
	switch {
	case config.GCSBucket != "":
		var opts []option.ClientOption
		if config.GCSEndpoint != "" {
			opts = append(opts, option.WithEndpoint(config.GCSEndpoint), option.WithoutAuthentication())
		}
		client, err := storage.NewClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		e.storage = storageprovider.NewGcs(client, config.GCSBucket)
		e.closers = append(e.closers, client.Close)
	case config.ProfilesBucket != "":
		b, err := storageprovider.OpenBlob(ctx, config.ProfilesBucket)
		if err != nil {
			return nil, err
		}
		e.storage = b
		e.closers = append(e.closers, b.Close)
	case config.BadgerDir != "":
		b, err := storageprovider.OpenBadger(config.BadgerDir)
		if err != nil {
			return nil, err
		}
		e.storage = b
		e.closers = append(e.closers, b.Close)
	}
	for i := 0; i < config.ReadWorkers; i++ {
		go storageutil.ReadWorker(e.readJobs)
	}
	return &e, nil
}

func (e *environment) shutdown() {
	close(e.readJobs)
	for _, c := range e.closers {
		if err := c(); err != nil {
			sentry.CaptureException(err)
		}
	}
	sentry.Flush(5 * time.Second)
}

// sweep evicts expired sessions and loaders until ctx is done.
func (e *environment) sweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sessions := e.sessions.Sweep()
			loaders := e.loaders.Sweep()
			if sessions > 0 || loaders > 0 {
				log.Debug().
					Int("sessions", sessions).
					Int("loaders", loaders).
					Msg("evicted expired sessions")
			}
		}
	}
}

func (e *environment) newRouter() (*httprouter.Router, error) {
	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		return nil, err
	}

	routes := []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodPost, "/organizations/:organization_id/flamegraph", e.postFlamegraph},
		{http.MethodGet, "/sessions/:session_id", e.getSession},
		{http.MethodPost, "/sessions/:session_id/navigation", e.postNavigation},
		{http.MethodGet, "/sessions/:session_id/speedscope", e.getSpeedscope},
		{http.MethodGet, "/sessions/:session_id/functions", e.getFunctions},
		{http.MethodGet, "/health", e.getHealth},
	}

	router := httprouter.New()

	for _, route := range routes {
		handlerFunc := httputil.AnonymizeTransactionName(route.handler)
		handlerFunc = httputil.DecompressPayload(handlerFunc)
		handler := compress(handlerFunc)

		router.Handler(route.method, route.path, handler)
	}

	return router, nil
}

func main() {
	config, err := readServiceConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading the service config: %v\n", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logutil.ConfigureLogger(level)

	err = sentry.Init(sentry.ClientOptions{
		Dsn:                   config.SentryDSN,
		EnableTracing:         true,
		Environment:           config.Environment,
		Release:               release,
		TracesSampleRate:      1.0,
		BeforeSendTransaction: httputil.SetHTTPStatusCodeTag,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("can't initialize sentry")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env, err := newEnvironment(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up environment")
	}
	go env.sweep(ctx, time.Minute)

	router, err := env.newRouter()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal().Err(err).Msg("error setting up the router")
	}

	server := http.Server{
		Addr:    ":" + config.Port,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	log.Info().Str("port", config.Port).Str("environment", config.Environment).Msg("starting flamegraph service")
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		log.Err(err).Msg("server failed")
	}

	<-waitForShutdown

	// Shutdown the rest of the environment after the HTTP connections are closed
	cancel()
	env.shutdown()
}

func (e *environment) getHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
