// Command bakehoused runs the bakery management daemon: local-first store,
// background sync, derived inventory views, and the JSON API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakehouse/internal/blob"
	"bakehouse/internal/config"
	"bakehouse/internal/core"
	"bakehouse/internal/derived"
	"bakehouse/internal/httpapi"
	syncpkg "bakehouse/internal/sync"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger()

	store, err := core.OpenPersistentStore(log)
	if err != nil {
		log.WithError(err).Fatal("open persistent store")
	}

	broadcaster := core.NewChangeBroadcaster()
	svc := core.NewService(store, broadcaster, log)
	engine := derived.NewEngine(store)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		tracker  *syncpkg.Tracker
		applier  *syncpkg.Applier
		flusher  *syncpkg.Engine
		listener *syncpkg.Listener
	)
	if cfg.SyncEndpoint != "" {
		tracker = syncpkg.NewTracker()
		tracker.Seed(store.ExportState())
		blobStore, err := blob.Open(ctx)
		if err != nil {
			log.WithError(err).Fatal("open blob store")
		}
		flusher = syncpkg.NewEngine(tracker, syncpkg.NewHTTPPusher(cfg.SyncEndpoint), blob.NewArchive(blobStore), log, syncpkg.Options{
			UserID:   cfg.SyncUserID,
			Debounce: cfg.SyncDebounce,
			Interval: cfg.SyncInterval,
		})
		unsubscribe := broadcaster.Subscribe(flusher.Record)
		defer unsubscribe()
		flusher.Start(ctx)
	}

	applier = syncpkg.NewApplier(store, tracker, log)

	if len(cfg.KafkaBrokers) > 0 {
		reader := syncpkg.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		listener = syncpkg.NewListener(reader, applier, log)
		listener.Start(ctx)
	}

	handler := httpapi.New(svc, engine, applier, tracker, log)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if listener != nil {
		listener.Stop()
	}
	if flusher != nil {
		flusher.Stop(shutdownCtx)
	}
	os.Exit(0)
}
