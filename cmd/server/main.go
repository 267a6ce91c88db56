package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ParleSec/openid-provider/internal/ax"
	"github.com/ParleSec/openid-provider/internal/core"
	"github.com/ParleSec/openid-provider/internal/crypto"
	"github.com/ParleSec/openid-provider/internal/httpapi"
	"github.com/ParleSec/openid-provider/internal/monitor"
	"github.com/ParleSec/openid-provider/internal/openid"
	"github.com/ParleSec/openid-provider/internal/provider"
	"github.com/ParleSec/openid-provider/internal/sessionstore"
	"github.com/ParleSec/openid-provider/internal/verifier"
	"github.com/ParleSec/openid-provider/pkg/models"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	core.NewLogger(cfg)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *core.Config) error {
	ctx := context.Background()

	keySet, err := crypto.NewKeySet()
	if err != nil {
		return fmt.Errorf("initialize key set: %w", err)
	}
	signer := crypto.NewCookieSigner(keySet, cfg.BaseURL)
	slog.Info("cryptographic keys initialized")

	shared, private, closeAssocs, err := buildAssociationStores(cfg)
	if err != nil {
		return err
	}
	defer closeAssocs()

	sessions, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	idv, err := buildVerifier(cfg)
	if err != nil {
		return err
	}

	engine := openid.NewEngine(cfg.BaseURL+"openid/entry", shared, private,
		openid.WithAssociationTTL(cfg.Associations.TTL))

	events := monitor.NewEngine(256)

	prov, err := provider.New(cfg.BaseURL, engine, idv,
		ax.NewResponder(cfg.Attributes.EmailDomain), sessions,
		provider.WithEventSink(events),
		provider.WithSessionTTLs(cfg.Sessions.AnonymousTTL, cfg.Sessions.AuthenticatedTTL),
	)
	if err != nil {
		return err
	}
	slog.Info("provider initialized", "base_url", cfg.BaseURL, "verifier", cfg.Verifier.Mode)

	handlers := httpapi.NewHandlers(prov, signer, events, cfg.CookieName, cfg.Verifier.CookieName)
	server := core.NewServer(cfg, handlers)
	return server.Run(ctx)
}

func buildAssociationStores(cfg *core.Config) (shared, private openid.AssociationStore, closeAll func(), err error) {
	switch cfg.Associations.Store {
	case "sqlite":
		s, err := openid.NewSQLiteAssociationStore(cfg.Associations.DataDir, "shared")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open shared association store: %w", err)
		}
		p, err := openid.NewSQLiteAssociationStore(cfg.Associations.DataDir, "private")
		if err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("open private association store: %w", err)
		}
		return s, p, func() { s.Close(); p.Close() }, nil

	default:
		s := openid.NewMemoryAssociationStore()
		p := openid.NewMemoryAssociationStore()
		return s, p, func() { s.Close(); p.Close() }, nil
	}
}

func buildSessionStore(cfg *core.Config) (sessionstore.Store, error) {
	switch cfg.Sessions.Store {
	case "redis":
		store, err := sessionstore.NewRedisStore(cfg.Sessions.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect session store: %w", err)
		}
		slog.Info("using redis session store", "addr", cfg.Sessions.Redis.Address)
		return store, nil

	default:
		return sessionstore.NewMemoryStore(), nil
	}
}

func buildVerifier(cfg *core.Config) (verifier.IdentityVerifier, error) {
	switch cfg.Verifier.Mode {
	case "remote":
		return verifier.NewRemoteVerifier(cfg.Verifier.ProbeURL, cfg.Verifier.CookieName, 10*time.Second), nil

	default:
		users := cfg.Verifier.Users
		if len(users) == 0 {
			// Development fallback so a bare config still runs.
			users = []models.User{
				{ID: "alice", Email: "alice@example.com", Name: "Alice", Password: "password"},
				{ID: "bob", Email: "bob@example.com", Name: "Bob", Password: "password"},
			}
			slog.Warn("no users configured, using built-in development users")
		}
		return verifier.NewStaticVerifier(users), nil
	}
}
