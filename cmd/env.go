package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/cache"
	"github.com/sells-group/filings-cli/internal/enrich"
	"github.com/sells-group/filings-cli/internal/match"
	"github.com/sells-group/filings-cli/internal/parcels"
	"github.com/sells-group/filings-cli/internal/policy"
	"github.com/sells-group/filings-cli/internal/resolve"
	"github.com/sells-group/filings-cli/internal/source"
	"github.com/sells-group/filings-cli/internal/store"
	"github.com/sells-group/filings-cli/pkg/addrval"
	"github.com/sells-group/filings-cli/pkg/parcelgis"
	"github.com/sells-group/filings-cli/pkg/propdata"
)

// env holds the wired pipeline for a command invocation.
type env struct {
	Store        store.Store
	Cache        *cache.Cache
	Orchestrator *enrich.Orchestrator
}

func (e *env) Close() {
	_ = e.Store.Close()
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	c := cache.New(st,
		cache.WithSweepInterval(time.Duration(cfg.Cache.SweepSecs)*time.Second))

	chain := addrval.NewChain(
		addrval.NewGoogle(cfg.Google.Key),
		addrval.NewSmarty(cfg.Smarty.AuthID, cfg.Smarty.AuthToken),
		addrval.NewUSPS(cfg.USPS.Token),
	)

	prop := propdata.NewClient(cfg.PropData.Key,
		propdata.WithBaseURL(cfg.PropData.BaseURL),
		propdata.WithRateLimit(cfg.PropData.RateLimit),
	)

	resolver := resolve.New(chain, prop, c,
		resolve.WithAddressTTL(time.Duration(cfg.Cache.RawTTLHours)*time.Hour),
		resolve.WithPropertyTTL(time.Duration(cfg.Cache.PropertyTTLHours)*time.Hour),
	)

	var matcher enrich.ParcelMatcher
	if searcher := initSearcher(st); searcher != nil {
		matcher = match.New(searcher, match.WithCandidateLimit(cfg.Parcels.MaxCandidates))
	}

	filter, err := policy.LoadFile(cfg.Policy.File)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	registry := source.NewRegistry()
	if cfg.Source.BaseURL != "" {
		registry.Register(source.NewHTTP("scraper", cfg.Source.BaseURL))
	}
	if cfg.Source.File != "" {
		registry.Register(source.NewFile("file", cfg.Source.File))
	}

	params := enrich.Params{
		BaseBatchSize: cfg.Enrich.BaseBatchSize,
		BatchCeiling:  cfg.Enrich.BatchCeiling,
		HeavyCeiling:  cfg.Enrich.HeavyCeiling,
		MaxAttempts:   cfg.Enrich.MaxAttempts,
		Workers:       cfg.Enrich.Workers,
		SubBatchSize:  cfg.Enrich.SubBatchSize,
		Delay:         time.Duration(cfg.Enrich.DelayMillis) * time.Millisecond,
		RawTTL:        time.Duration(cfg.Cache.RawTTLHours) * time.Hour,
	}

	return &env{
		Store:        st,
		Cache:        c,
		Orchestrator: enrich.New(registry, resolver, matcher, filter, st, c, params),
	}, nil
}

// initSearcher picks the parcel index backend. Without one, records
// that carry no address fail resolution instead of being matched.
func initSearcher(st store.Store) match.Searcher {
	switch cfg.Parcels.Provider {
	case "arcgis":
		if cfg.Parcels.ArcGISURL == "" {
			zap.L().Warn("parcels provider arcgis configured without a URL, matcher disabled")
			return nil
		}
		return parcels.NewGISIndex(parcelgis.NewArcGIS(cfg.Parcels.ArcGISURL))
	case "postgres":
		pg, ok := st.(*store.PostgresStore)
		if !ok {
			zap.L().Warn("parcels provider postgres requires the postgres store, matcher disabled")
			return nil
		}
		return parcels.NewPGIndex(pg.Pool())
	default:
		return nil
	}
}
