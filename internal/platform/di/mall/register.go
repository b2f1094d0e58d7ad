// internal/platform/di/mall/register.go
package mall

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	mallhttp "thriftmall/internal/adapters/in/http/mall"
	mallhandler "thriftmall/internal/adapters/in/http/mall/handler"
	"thriftmall/internal/adapters/in/http/middleware"
	shared "thriftmall/internal/platform/di/shared"
)

// notImplemented returns a non-nil handler (so deps are never nil) for endpoints
// that are not wired yet.
func notImplemented(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotImplemented)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "not_implemented",
			"name":  name,
		})
	})
}

// requireUserAuth wraps handler with UserAuthMiddleware (fail-closed).
// If middleware is not initialized, it returns 503 so the bug is obvious.
func requireUserAuth(mw *middleware.UserAuthMiddleware, h http.Handler, name string) http.Handler {
	if h == nil {
		h = http.NotFoundHandler()
	}
	if mw == nil || mw.FirebaseAuth == nil {
		log.Printf("[mall.register] ERROR: UserAuthMiddleware is not initialized (endpoint=%s). returning 503", name)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "user_auth_not_initialized",
				"name":  name,
			})
		})
	}
	return mw.Handler(h)
}

// Register registers mall routes onto mux.
// Pure DI: construct handlers and pass into mall router.Register.
// - No method/path branching here
// - deps must be non-nil for all handlers
// - chain per route: metrics → auth → throttle (cart only) → handler
func Register(mux *http.ServeMux, cont *Container) {
	if mux == nil || cont == nil {
		return
	}

	// ------------------------------------------------------------
	// Auth middleware (buyer/user side)
	// ------------------------------------------------------------
	userAuthMW := &middleware.UserAuthMiddleware{}
	if cont.Infra != nil && cont.Infra.FirebaseAuth != nil {
		userAuthMW.FirebaseAuth = cont.Infra.FirebaseAuth
	} else {
		// fail-closed in requireUserAuth
		log.Printf("[mall.register] WARN: FirebaseAuth is nil (user auth will return 503 on protected endpoints)")
	}
	registerWithAuth(mux, cont, userAuthMW)
}

func registerWithAuth(mux *http.ServeMux, cont *Container, userAuthMW *middleware.UserAuthMiddleware) {
	cartH := notImplemented("Cart")
	usageH := notImplemented("Usage")

	if cont.CartUC != nil {
		cartH = mallhandler.NewCartHandler(cont.CartUC)
		if cont.LimiterUC != nil {
			throttle := &middleware.ActionThrottle{
				Limiter: cont.LimiterUC,
				Action:  shared.CartAction,
			}
			if cont.Infra != nil {
				throttle.Options = cont.Infra.Settings.CartThrottle
			}
			cartH = throttle.Handler(cartH)
		}
	}
	if cont.LimiterUC != nil {
		var policy mallhandler.UsagePolicy
		if cont.Infra != nil {
			policy.Actions = cont.Infra.Settings.ActionThrottles
			policy.ProfileFields = cont.Infra.Settings.ProfileFields
		}
		usageH = mallhandler.NewUsageHandler(cont.LimiterUC, policy)
	}

	cartH = middleware.Instrument("cart", cont.Metrics, requireUserAuth(userAuthMW, cartH, "Cart"))
	usageH = middleware.Instrument("usage", cont.Metrics, requireUserAuth(userAuthMW, usageH, "Usage"))

	mallhttp.Register(mux, mallhttp.Deps{
		Cart:  cartH,
		Usage: usageH,
	})
	log.Printf("[boot] mall routes registered")

	// readiness: store backend reachable
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := cont.Infra.Ping(ctx); err != nil {
			log.Printf("[readyz] store ping failed: %v", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cont.Metrics != nil {
		mux.Handle("/metrics", cont.Metrics.Handler())
	}
}
