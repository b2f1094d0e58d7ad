// internal/platform/di/shared/runtime_settings_validate.go
package shared

import (
	"fmt"
	"regexp"
	"strings"

	rl "thriftmall/internal/domain/ratelimit"
	appcfg "thriftmall/internal/infra/config"
)

// Profile field names are top-level document keys.
var profileFieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// Validate performs hard validation for RuntimeSettings.
//
// Policy:
//   - This should be stricter than Normalize.
//   - It should fail fast for values that would cause undefined behavior,
//     while allowing optional features to remain disabled when settings are empty.
func (s RuntimeSettings) Validate() error {
	switch s.Backend {
	case appcfg.BackendFirestore:
		if strings.TrimSpace(s.ProjectID) == "" {
			return fmt.Errorf("shared.runtime_settings: projectID is empty (set FIRESTORE_PROJECT_ID or GOOGLE_CLOUD_PROJECT)")
		}
	case appcfg.BackendPostgres:
		if s.DatabaseURL == "" && s.DatabaseURLSecret == "" {
			return fmt.Errorf("shared.runtime_settings: STORE_BACKEND=postgres needs DATABASE_URL or DATABASE_URL_SECRET")
		}
		if s.DatabaseURL == "" && !strings.HasPrefix(s.DatabaseURLSecret, "projects/") {
			return fmt.Errorf("shared.runtime_settings: DATABASE_URL_SECRET must be a full version name (got %q)", s.DatabaseURLSecret)
		}
	case appcfg.BackendMemory:
	default:
		return fmt.Errorf("shared.runtime_settings: unknown STORE_BACKEND %q", s.Backend)
	}

	if err := s.CartThrottle.Validate(); err != nil {
		return fmt.Errorf("shared.runtime_settings: cart throttle: %w", err)
	}

	for action, opts := range s.ActionThrottles {
		if err := rl.ValidateAction(action); err != nil {
			return fmt.Errorf("shared.runtime_settings: USAGE_ACTIONS: %w", err)
		}
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("shared.runtime_settings: %s throttle: %w", action, err)
		}
	}
	for _, f := range s.ProfileFields {
		if !profileFieldPattern.MatchString(f) {
			return fmt.Errorf("shared.runtime_settings: USAGE_PROFILE_FIELDS has invalid field %q", f)
		}
	}

	// GCS bucket names cannot contain spaces.
	if strings.ContainsAny(s.ArchiveBucket, " \t\r\n") {
		return fmt.Errorf("shared.runtime_settings: archive bucket contains whitespace (got %q)", s.ArchiveBucket)
	}

	for _, o := range s.CORSAllowedOrigins {
		if !(strings.HasPrefix(o, "http://") || strings.HasPrefix(o, "https://")) {
			return fmt.Errorf("shared.runtime_settings: CORS origin must start with http:// or https:// (got %q)", o)
		}
	}
	return nil
}
