// internal/adapters/in/http/mall/router.go
package mall

import (
	"log"
	"net/http"
)

// Deps is a buyer-facing (mall) handler set.
// Handlers are expected to be wrapped with auth/throttle already.
type Deps struct {
	Cart  http.Handler
	Usage http.Handler
}

// handleSafe registers pattern with h.
// If h is nil, it logs and registers NotFoundHandler instead (so Cloud Run won't crash).
func handleSafe(mux *http.ServeMux, pattern string, h http.Handler, name string) {
	if h == nil {
		log.Printf("[mall.router] WARN: nil handler: %s pattern=%s (registering NotFoundHandler)", name, pattern)
		h = http.NotFoundHandler()
	}
	mux.Handle(pattern, h)
}

// Register registers buyer-facing routes onto mux (mall only).
func Register(mux *http.ServeMux, deps Deps) {
	if mux == nil {
		return
	}

	// cart (+ /merge, /items)
	handleSafe(mux, "/mall/me/cart", deps.Cart, "Cart")
	handleSafe(mux, "/mall/me/cart/", deps.Cart, "Cart")

	// usage: /mall/me/usage/{action}
	handleSafe(mux, "/mall/me/usage/", deps.Usage, "Usage")
}
