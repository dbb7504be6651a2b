package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cardstash/cardstash/internal/enrich"
	"github.com/cardstash/cardstash/internal/store"
	"github.com/cardstash/cardstash/pkg/quality"
	"github.com/cardstash/cardstash/pkg/scraper"
	"github.com/cardstash/cardstash/pkg/vector"
)

// enrichEnv holds the initialized store, clients and enricher needed by
// the serve and enrich commands.
type enrichEnv struct {
	Store    store.Store
	Enricher *enrich.Enricher
}

// Close releases resources held by the environment.
func (env *enrichEnv) Close() {
	if env.Store != nil {
		_ = env.Store.Close()
	}
}

// initEnrich sets up the store and service clients and builds the
// enricher. Callers should defer env.Close().
func initEnrich(ctx context.Context) (*enrichEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	scraperClient := scraper.NewClient(cfg.Scraper.Key,
		scraper.WithBaseURL(cfg.Scraper.BaseURL),
		scraper.WithTimeout(time.Duration(cfg.Scraper.TimeoutSecs)*time.Second),
	)
	qualityClient := quality.NewClient(cfg.Quality.Key,
		quality.WithBaseURL(cfg.Quality.BaseURL),
		quality.WithTimeout(time.Duration(cfg.Quality.TimeoutSecs)*time.Second),
	)
	vectorClient := vector.NewClient(cfg.Vector.Key,
		vector.WithBaseURL(cfg.Vector.BaseURL),
		vector.WithIndex(cfg.Vector.Index),
	)

	enricher := enrich.New(cfg.Enrich, cfg.Auth, st, scraperClient, qualityClient, vectorClient)

	return &enrichEnv{Store: st, Enricher: enricher}, nil
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
