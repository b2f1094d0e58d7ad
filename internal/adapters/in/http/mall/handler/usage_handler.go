// internal/adapters/in/http/mall/handler/usage_handler.go
package mallHandler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"thriftmall/internal/adapters/in/http/middleware"
	usecase "thriftmall/internal/application/usecase"
	rl "thriftmall/internal/domain/ratelimit"
)

const usagePrefix = "/mall/me/usage/"

// UsagePolicy is what the usage endpoint lets a signed-in user do.
// Limits and the collection come only from here, never from the request.
type UsagePolicy struct {
	Actions       map[string]rl.Options
	ProfileFields []string
}

// UsageHandler exposes the action limiter to the storefront:
//
//	POST /mall/me/usage/{action}  count one action (204 / 429)
//	GET  /mall/me/usage/{action}  per-window usage
//
// Actions missing from the policy are 404.
type UsageHandler struct {
	uc      *usecase.UserActionLimiter
	actions map[string]rl.Options
	fields  map[string]struct{}
	now     func() time.Time
}

func NewUsageHandler(uc *usecase.UserActionLimiter, policy UsagePolicy) http.Handler {
	actions := make(map[string]rl.Options, len(policy.Actions))
	for a, o := range policy.Actions {
		actions[strings.TrimSpace(a)] = o.WithDefaults()
	}
	fields := make(map[string]struct{}, len(policy.ProfileFields))
	for _, f := range policy.ProfileFields {
		if f = strings.TrimSpace(f); f != "" {
			fields[f] = struct{}{}
		}
	}
	return &UsageHandler{uc: uc, actions: actions, fields: fields, now: time.Now}
}

func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.uc == nil {
		writeErr(w, http.StatusInternalServerError, "usage handler is not configured")
		return
	}

	uid, ok := middleware.CurrentUserUID(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	idx := strings.Index(r.URL.Path, usagePrefix)
	if idx < 0 {
		notFound(w)
		return
	}
	action := strings.Trim(r.URL.Path[idx+len(usagePrefix):], "/")
	if action == "" || strings.Contains(action, "/") {
		notFound(w)
		return
	}

	opts, known := h.actions[action]

	switch r.Method {
	case http.MethodPost:
		if !known {
			notFound(w)
			return
		}
		h.handleAttempt(w, r, uid, action, opts)
	case http.MethodGet:
		if !known {
			notFound(w)
			return
		}
		h.handleUsage(w, r, uid, action, opts)
	default:
		methodNotAllowed(w)
	}
}

func (h *UsageHandler) handleAttempt(w http.ResponseWriter, r *http.Request, uid, action string, opts rl.Options) {
	var req attemptReq
	if err := readJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		badRequest(w, "invalid json body")
		return
	}
	if bad := h.disallowedFields(req.UserData); len(bad) > 0 {
		log.Printf("[mall_usage_handler] attempt rejected uid=%s action=%s fields=%v\n", maskUID(uid), action, bad)
		badRequest(w, fmt.Sprintf("userData fields not allowed: %s", strings.Join(bad, ",")))
		return
	}

	err := h.uc.Attempt(r.Context(), uid, action, opts, req.UserData)
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if errors.Is(err, rl.ErrStoreUnavailable) {
		log.Printf("[mall_usage_handler] attempt uid=%s action=%s err=%v\n", maskUID(uid), action, err)
	}
	if !middleware.WriteThrottleError(w, err, h.now()) {
		log.Printf("[mall_usage_handler] attempt unexpected uid=%s action=%s err=%v\n", maskUID(uid), action, err)
		writeErr(w, http.StatusInternalServerError, "internal_server_error")
	}
}

func (h *UsageHandler) handleUsage(w http.ResponseWriter, r *http.Request, uid, action string, opts rl.Options) {
	usages, err := h.uc.Usage(r.Context(), uid, action, opts)
	if err != nil {
		if errors.Is(err, rl.ErrStoreUnavailable) {
			log.Printf("[mall_usage_handler] usage uid=%s action=%s err=%v\n", maskUID(uid), action, err)
		}
		if !middleware.WriteThrottleError(w, err, h.now()) {
			writeErr(w, http.StatusInternalServerError, "internal_server_error")
		}
		return
	}

	out := make([]usageDTO, 0, len(usages))
	for _, u := range usages {
		out = append(out, usageDTO{
			Window:    string(u.Window),
			Count:     u.Count,
			Limit:     u.Limit,
			Remaining: u.Remaining,
			ResetAt:   toRFC3339(u.ResetAt),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"action": action, "windows": out})
}

func (h *UsageHandler) disallowedFields(userData map[string]any) []string {
	var bad []string
	for k := range userData {
		if _, ok := h.fields[k]; !ok {
			bad = append(bad, k)
		}
	}
	sort.Strings(bad)
	return bad
}

// Only userData is read from the body; any "options" sent by older clients
// is ignored.
type attemptReq struct {
	UserData map[string]any `json:"userData"`
}

type usageDTO struct {
	Window    string `json:"window"`
	Count     int64  `json:"count"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	ResetAt   string `json:"resetAt,omitempty"`
}
