// cmd/mall/main.go
package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"thriftmall/internal/adapters/in/http/middleware"
	appcfg "thriftmall/internal/infra/config"
	mallDI "thriftmall/internal/platform/di/mall"
	shared "thriftmall/internal/platform/di/shared"
)

// atomicHandler allows swapping the underlying handler at runtime safely.
type atomicHandler struct {
	v atomic.Value // stores http.Handler
}

func newAtomicHandler(initial http.Handler) *atomicHandler {
	ah := &atomicHandler{}
	if initial == nil {
		initial = http.NotFoundHandler()
	}
	ah.v.Store(initial)
	return ah
}

func (h *atomicHandler) Store(next http.Handler) {
	if next == nil {
		return
	}
	h.v.Store(next)
}

func (h *atomicHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cur := h.v.Load()
	if cur == nil {
		http.NotFound(w, r)
		return
	}
	cur.(http.Handler).ServeHTTP(w, r)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func main() {
	ctx := context.Background()
	cfg := appcfg.Load()

	// ─────────────────────────────────────────────────────────────
	// Log output: stdout + (best-effort) file
	// ─────────────────────────────────────────────────────────────
	{
		logPath := cfg.LogFile
		if _, ok := os.LookupEnv("K_SERVICE"); ok {
			logPath = "/tmp/" + logPath
		}

		if f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644); err == nil {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
			log.Printf("[boot] log output = stdout + %s", logPath)
		} else {
			log.Printf("[boot] WARN: could not open %s: %v (stdout only)", logPath, err)
		}
	}

	// ─────────────────────────────────────────────────────────────
	// Start listening ASAP with lightweight mux (healthz only)
	// ─────────────────────────────────────────────────────────────
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthz)

	cors := middleware.CORS(cfg.CORSAllowedOrigins)
	switcher := newAtomicHandler(cors(middleware.Recover(healthMux)))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      switcher,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// container owns infra once it exists
	var contHolder atomic.Pointer[mallDI.Container]
	shuttingDown := make(chan struct{})

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c

		close(shuttingDown)
		log.Printf("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[boot] server shutdown error: %v", err)
		}

		if cont := contHolder.Swap(nil); cont != nil {
			log.Printf("[boot] closing mall container resources...")
			if err := cont.Close(); err != nil {
				log.Printf("[boot] mall container close error: %v", err)
			}
		}

		close(idleConnsClosed)
	}()

	// Start server NOW (Cloud Run startup requirement)
	go func() {
		log.Printf("[boot] listening on :%s (mall)", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[boot] server error: %v", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────
	// Heavy DI init in background; then swap handler to full app mux
	// ─────────────────────────────────────────────────────────────
	go func() {
		initCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		// 1) shared infra (mall service owns it)
		infra, err := shared.NewInfra(initCtx, cfg, shared.Options{})
		if err != nil {
			log.Printf("[boot] WARN: shared infra init failed: %v (serving /healthz only)", err)
			return
		}

		// 2) mall container (required)
		mallCont, err := mallDI.NewContainer(initCtx, infra)
		if err != nil {
			_ = infra.Close()
			log.Printf("[boot] WARN: mall di init failed: %v (serving /healthz only)", err)
			return
		}

		select {
		case <-shuttingDown:
			_ = mallCont.Close()
			return
		default:
		}
		contHolder.Store(mallCont)

		fullMux := http.NewServeMux()
		fullMux.HandleFunc("/healthz", healthz)

		// 3) mall routes
		mallDI.Register(fullMux, mallCont)

		switcher.Store(cors(middleware.Recover(fullMux)))
		log.Printf("[boot] handler switched to mall router")
	}()

	<-idleConnsClosed
	log.Printf("[boot] server stopped")
}
