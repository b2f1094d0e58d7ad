// internal/infra/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by STORE_BACKEND.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port    string
	LogFile string

	// STORE_BACKEND: firestore | postgres | memory
	Backend string

	GCPCreds                 string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	FirebaseProjectID        string

	// DATABASE_URL wins; otherwise DATABASE_URL_SECRET names a Secret Manager
	// version (projects/.../secrets/.../versions/latest) holding the DSN.
	DatabaseURL       string
	DatabaseURLSecret string
	DatabaseMigrate   bool

	CORSAllowedOrigins []string

	// Throttle applied to cart mutations (action "cart").
	UsageCollection string
	CartWriteLimit  int64
	CartMinuteLimit int64
	CartHourLimit   int64
	CartDayLimit    int64

	// Actions clients may count through /mall/me/usage/{action}. Each uses
	// the default limits; the cart action is always added with the limits above.
	UsageActions []string
	// userData keys an accepted action may merge into users/{uid}.
	UsageProfileFields []string

	// USAGE_ARCHIVE_URL (gs://bucket/prefix): sweeps copy records here first.
	UsageArchiveURL string

	ShutdownTimeout time.Duration
}

// Load reads .env.local and .env (if present) and then the environment.
func Load() *Config {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			log.Printf("[config] %s not loaded: %v", f, err)
		}
	}

	defaultProject := getenvDefault("GCP_PROJECT_ID", "thriftmall-dev")

	return &Config{
		Port:    getenvDefault("PORT", "8080"),
		LogFile: getenvDefault("LOG_FILE", "mall.log"),
		Backend: strings.ToLower(getenvDefault("STORE_BACKEND", BackendFirestore)),

		GCPCreds:                 os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		FirestoreProjectID:       getenvDefault("FIRESTORE_PROJECT_ID", defaultProject),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		FirebaseProjectID:        getenvDefault("FIREBASE_PROJECT_ID", defaultProject),

		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DatabaseURLSecret: strings.TrimSpace(os.Getenv("DATABASE_URL_SECRET")),
		DatabaseMigrate:   getenvBool("DATABASE_MIGRATE", true),

		CORSAllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),

		UsageCollection: getenvDefault("USAGE_COLLECTION", "usage_metadata"),
		CartWriteLimit:  getenvInt("CART_WRITE_LIMIT", 0),
		CartMinuteLimit: getenvInt("CART_MINUTE_LIMIT", 30),
		CartHourLimit:   getenvInt("CART_HOUR_LIMIT", 200),
		CartDayLimit:    getenvInt("CART_DAY_LIMIT", 500),

		UsageActions:       splitCSV(getenvDefault("USAGE_ACTIONS", "favorite,message,listing,review,profile")),
		UsageProfileFields: splitCSV(getenvDefault("USAGE_PROFILE_FIELDS", "displayName,favorites,lastActiveAt")),

		UsageArchiveURL: strings.TrimSpace(os.Getenv("USAGE_ARCHIVE_URL")),

		ShutdownTimeout: getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
		log.Printf("[config] invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
