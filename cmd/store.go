package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tracelight/dataset-cli/internal/config"
	"github.com/tracelight/dataset-cli/internal/dataset"
	"github.com/tracelight/dataset-cli/internal/notify"
	"github.com/tracelight/dataset-cli/internal/service"
	"github.com/tracelight/dataset-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "datasets.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initNotifier(c config.NotifyConfig) (notify.Notifier, func()) {
	if c.WebhookURL == "" {
		return notify.LogNotifier{}, func() {}
	}
	w := notify.NewWebhook(c.WebhookURL, notify.WebhookOptions{
		QueueSize:  c.QueueSize,
		RatePerSec: c.RatePerSec,
		Burst:      c.Burst,
		Timeout:    timeoutSecs(c.TimeoutSecs),
	})
	return w, w.Close
}

func initService(ctx context.Context) (*service.Service, store.Store, func(), error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	n, stopNotifier := initNotifier(cfg.Notify)
	svc := service.New(st, n,
		service.WithVocabulary(dataset.NewVocabulary(cfg.Ingest.ExtraAttributeKeys...)),
	)
	cleanup := func() {
		stopNotifier()
		_ = st.Close()
	}
	return svc, st, cleanup, nil
}

func timeoutSecs(s int) time.Duration {
	return time.Duration(s) * time.Second
}
