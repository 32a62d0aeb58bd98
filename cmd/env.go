package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locale-cli/internal/db"
	"github.com/sells-group/locale-cli/internal/ingest"
	"github.com/sells-group/locale-cli/internal/ledger"
	"github.com/sells-group/locale-cli/internal/model"
	"github.com/sells-group/locale-cli/internal/resilience"
	"github.com/sells-group/locale-cli/internal/store"
	"github.com/sells-group/locale-cli/internal/transcode"
	"github.com/sells-group/locale-cli/pkg/nominatim"
	"github.com/sells-group/locale-cli/pkg/overpass"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "locale.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initOverpass() overpass.Client {
	oc := cfg.Overpass
	return overpass.NewClient(
		overpass.WithBaseURL(oc.URL),
		overpass.WithUserAgent(oc.UserAgent),
		overpass.WithHTTPClient(&http.Client{Timeout: time.Duration(oc.TimeoutSecs) * time.Second}),
		overpass.WithQueryTimeout(oc.QueryTimeoutSecs),
		overpass.WithRateLimit(oc.RateLimit),
		overpass.WithRetry(resilience.RetryFromSettings(oc.MaxAttempts, oc.InitialBackoffMs, oc.MaxBackoffMs)),
	)
}

func initGeocoder() nominatim.Client {
	nc := cfg.Nominatim
	client := nominatim.NewClient(
		nominatim.WithBaseURL(nc.URL),
		nominatim.WithUserAgent(nc.UserAgent),
		nominatim.WithRateLimit(nc.RateLimit),
	)
	if nc.CacheTTLMins > 0 {
		client = nominatim.NewCachedClient(client, time.Duration(nc.CacheTTLMins)*time.Minute)
	}
	return client
}

// appEnv holds the components shared by every local command.
type appEnv struct {
	Store      store.Store
	Ledger     *ledger.Ledger
	Transcoder *transcode.Transcoder
}

func (e *appEnv) Close() error {
	return e.Store.Close()
}

func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	l := ledger.New(st)
	return &appEnv{
		Store:      st,
		Ledger:     l,
		Transcoder: transcode.New(st, l),
	}, nil
}

func newEngine(st store.Store) *ingest.Engine {
	return ingest.NewEngine(initOverpass(), st)
}

// activeProfile resolves --profile (or profile.default) and checks --pin
// against it.
func (e *appEnv) activeProfile(ctx context.Context) (*model.User, error) {
	name := profileFlag
	if name == "" {
		name = cfg.Profile.Default
	}
	if name == "" {
		return nil, eris.New("no profile selected (use --profile or set profile.default)")
	}
	u, err := e.Ledger.Find(ctx, name)
	if err != nil {
		return nil, eris.Wrapf(err, "profile %q", name)
	}
	if !ledger.VerifyPIN(u, pinFlag) {
		return nil, eris.Errorf("profile %q is locked (use --pin)", u.Username)
	}
	return u, nil
}
