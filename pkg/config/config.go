package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cbodonnell/partyhub/pkg/store"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

const (
	AuthModeFirebase = "firebase"
	AuthModeInsecure = "insecure"
)

type Config struct {
	StoreURL                string
	MigrationsDir           string
	AuthMode                string
	FirebaseProjectID       string
	FirebaseCredentialsFile string
	AllowOrigins            []string
	TxMaxAttempts           int
	RandomSeed              int64
	TLSCertFile             string
	TLSKeyFile              string
}

func Default() Config {
	return Config{
		StoreURL:      "memory://",
		MigrationsDir: "./migrations",
		AuthMode:      AuthModeInsecure,
		AllowOrigins:  []string{"*"},
		TxMaxAttempts: store.DefaultMaxAttempts,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("PARTYHUB_STORE_URL"); raw != "" {
		cfg.StoreURL = raw
	}
	if raw := os.Getenv("PARTYHUB_MIGRATIONS_DIR"); raw != "" {
		cfg.MigrationsDir = raw
	}
	if raw := os.Getenv("PARTYHUB_AUTH_MODE"); raw != "" {
		cfg.AuthMode = strings.ToLower(raw)
	}
	if raw := os.Getenv("PARTYHUB_FIREBASE_PROJECT_ID"); raw != "" {
		cfg.FirebaseProjectID = raw
	}
	if raw := os.Getenv("PARTYHUB_FIREBASE_CREDENTIALS_FILE"); raw != "" {
		cfg.FirebaseCredentialsFile = raw
	}
	if raw := os.Getenv("PARTYHUB_ALLOW_ORIGIN"); raw != "" {
		origins := []string{}
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			cfg.AllowOrigins = origins
		}
	}
	if raw := os.Getenv("PARTYHUB_TX_MAX_ATTEMPTS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.TxMaxAttempts = value
		}
	}
	if raw := os.Getenv("PARTYHUB_RANDOM_SEED"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.RandomSeed = value
		}
	}
	if raw := os.Getenv("PARTYHUB_API_TLS_CERT_FILE"); raw != "" {
		cfg.TLSCertFile = raw
	}
	if raw := os.Getenv("PARTYHUB_API_TLS_KEY_FILE"); raw != "" {
		cfg.TLSKeyFile = raw
	}
	return cfg
}
