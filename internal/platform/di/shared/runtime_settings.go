// internal/platform/di/shared/runtime_settings.go
package shared

import (
	"errors"
	"os"
	"strings"

	gcsrepo "thriftmall/internal/adapters/out/gcs"
	rl "thriftmall/internal/domain/ratelimit"
	appcfg "thriftmall/internal/infra/config"
)

// Action name the cart mutations are counted under.
const CartAction = "cart"

// RuntimeSettings is env/config-resolved runtime settings (normalized once).
// It intentionally contains only "values" (no external clients).
//
// Policy:
// - Prefer config (cfg) where available.
// - Keep normalization (trim, defaults) here.
// - Keep hard validation in runtime_settings_validate.go.
type RuntimeSettings struct {
	Backend   string
	ProjectID string

	// Postgres DSN, or the Secret Manager version that holds it.
	DatabaseURL       string
	DatabaseURLSecret string

	// Throttle options for cart mutations.
	CartThrottle rl.Options

	// Server-owned options per action on the usage endpoint (cart included).
	ActionThrottles map[string]rl.Options
	// userData keys the usage endpoint may merge into the profile.
	ProfileFields []string

	// Optional sweep archive.
	ArchiveBucket string
	ArchivePrefix string

	CORSAllowedOrigins []string
}

// ResolveRuntimeSettings resolves and normalizes runtime settings from cfg/env.
//
// Notes:
// - This function is side-effect free (no logging).
// - It returns warnings as strings so callers can decide how to surface them.
func ResolveRuntimeSettings(cfg *appcfg.Config) (RuntimeSettings, []string, error) {
	if cfg == nil {
		return RuntimeSettings{}, nil, errors.New("shared.runtime_settings: cfg is nil")
	}

	var warns []string
	s := RuntimeSettings{
		Backend:            strings.ToLower(strings.TrimSpace(cfg.Backend)),
		ProjectID:          resolveProjectID(cfg),
		DatabaseURL:        strings.TrimSpace(cfg.DatabaseURL),
		DatabaseURLSecret:  strings.TrimSpace(cfg.DatabaseURLSecret),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if s.Backend == "" {
		s.Backend = appcfg.BackendFirestore
	}

	s.CartThrottle = rl.Options{
		CollectionName: cfg.UsageCollection,
		WriteLimit:     cfg.CartWriteLimit,
		MinuteLimit:    cfg.CartMinuteLimit,
		HourLimit:      cfg.CartHourLimit,
		DayLimit:       cfg.CartDayLimit,
	}.WithDefaults()

	s.ActionThrottles = map[string]rl.Options{CartAction: s.CartThrottle}
	for _, a := range cfg.UsageActions {
		a = strings.TrimSpace(a)
		if a == "" || a == CartAction {
			continue
		}
		s.ActionThrottles[a] = rl.Options{CollectionName: cfg.UsageCollection}.WithDefaults()
	}
	for _, f := range cfg.UsageProfileFields {
		if f = strings.TrimSpace(f); f != "" {
			s.ProfileFields = append(s.ProfileFields, f)
		}
	}

	if u := strings.TrimSpace(cfg.UsageArchiveURL); u != "" {
		b, p, ok := gcsrepo.ParseGSURL(u)
		if !ok {
			return RuntimeSettings{}, warns, errors.New("shared.runtime_settings: USAGE_ARCHIVE_URL must look like gs://bucket/prefix")
		}
		s.ArchiveBucket, s.ArchivePrefix = b, p
	}

	if s.Backend == appcfg.BackendMemory {
		warns = append(warns, "STORE_BACKEND=memory: usage records and carts are lost on restart")
	}
	if len(s.ActionThrottles) == 1 {
		warns = append(warns, "USAGE_ACTIONS is empty (only the cart action is counted)")
	}
	if len(s.CORSAllowedOrigins) == 0 {
		warns = append(warns, "CORS_ALLOWED_ORIGINS is empty (every origin is allowed)")
	}
	if s.Backend == appcfg.BackendPostgres && s.DatabaseURL != "" && s.DatabaseURLSecret != "" {
		warns = append(warns, "DATABASE_URL and DATABASE_URL_SECRET are both set (DATABASE_URL wins)")
	}

	return s, warns, nil
}

func resolveProjectID(cfg *appcfg.Config) string {
	// Priority:
	// 1) cfg.FirestoreProjectID (resolved by config.Load)
	// 2) FIRESTORE_PROJECT_ID
	// 3) GOOGLE_CLOUD_PROJECT (often set in Cloud Run)
	// 4) FIREBASE_PROJECT_ID (fallback)
	if cfg != nil {
		if v := strings.TrimSpace(cfg.FirestoreProjectID); v != "" {
			return v
		}
	}
	for _, k := range []string{
		"FIRESTORE_PROJECT_ID",
		"GOOGLE_CLOUD_PROJECT",
		"FIREBASE_PROJECT_ID",
	} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
