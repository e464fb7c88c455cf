package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cbodonnell/partyhub/pkg/api"
	"github.com/cbodonnell/partyhub/pkg/auth"
	authproviders "github.com/cbodonnell/partyhub/pkg/auth/providers"
	"github.com/cbodonnell/partyhub/pkg/config"
	"github.com/cbodonnell/partyhub/pkg/game"
	"github.com/cbodonnell/partyhub/pkg/log"
	"github.com/cbodonnell/partyhub/pkg/network"
	"github.com/cbodonnell/partyhub/pkg/random"
	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/cbodonnell/partyhub/pkg/version"
)

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	envFile := flag.String("env-file", ".env", "optional file of environment variables")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting partyhub server version %s", version.Get())
	ctx := context.Background()

	if err := config.LoadDotEnv(*envFile); err != nil {
		panic(fmt.Sprintf("Failed to load %s: %v", *envFile, err))
	}
	cfg := config.Load()

	docStore, err := openStore(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open store: %v", err))
	}
	defer docStore.Close(ctx)

	authProvider, err := newAuthProvider(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	if cfg.RandomSeed != 0 {
		log.Warn("Using fixed random seed %d", cfg.RandomSeed)
	}
	deps := game.NewDeps(game.NewDepsOptions{
		Store: docStore,
		Rand:  random.NewSource(cfg.RandomSeed),
	})

	apiServerOpts := api.NewAPIServerOptions{
		Port:          *port,
		AllowOrigins:  cfg.AllowOrigins,
		AuthProvider:  authProvider,
		Deps:          deps,
		ClientManager: network.NewClientManager(),
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse store url: %v", err)
	}

	switch u.Scheme {
	case "memory":
		log.Warn("Using in-memory store, rooms will not survive a restart")
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(ctx, store.NewSQLiteOptions{
			Path:        u.Host + u.Path,
			Migrations:  filepath.Join(cfg.MigrationsDir, "sqlite"),
			MaxAttempts: cfg.TxMaxAttempts,
		})
	case "postgres", "postgresql":
		return store.NewPostgres(ctx, store.NewPostgresOptions{
			ConnString:  u.String(),
			Migrations:  filepath.Join(cfg.MigrationsDir, "postgres"),
			MaxAttempts: cfg.TxMaxAttempts,
		})
	case "firestore":
		projectID := u.Host
		if projectID == "" {
			projectID = cfg.FirebaseProjectID
		}
		app, err := auth.NewFirebaseApp(ctx, projectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting Firestore client: %v", err)
		}
		return store.NewFirestore(client, store.NewFirestoreOptions{
			MaxAttempts: cfg.TxMaxAttempts,
		}), nil
	default:
		return nil, fmt.Errorf("unknown store type %s", u.Scheme)
	}
}

func newAuthProvider(ctx context.Context, cfg config.Config) (authproviders.AuthProvider, error) {
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		if cfg.FirebaseProjectID == "" {
			return nil, fmt.Errorf("PARTYHUB_FIREBASE_PROJECT_ID must be set for firebase auth")
		}
		app, err := auth.NewFirebaseApp(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, err
		}
		return authproviders.NewFirebaseAuthProvider(ctx, app)
	case config.AuthModeInsecure:
		log.Warn("Using insecure auth, bearer tokens are trusted as user ids")
		return authproviders.NewInsecureAuthProvider(), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %s", cfg.AuthMode)
	}
}
