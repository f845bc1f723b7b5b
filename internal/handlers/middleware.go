package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"tiktok-ads-agent/internal/config"
)

type ctxKey string

const ctxCallerKey ctxKey = "caller_api_key"

var reqIDSeq uint64

func reqLogEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("GO_LOG")))
	return v == "debug" || v == "1" || v == "true"
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func WithRequestLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !reqLogEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			reqID := atomic.AddUint64(&reqIDSeq, 1)
			start := time.Now()
			log.Printf("http in  id=%d method=%s path=%s", reqID, r.Method, r.URL.Path)

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			log.Printf("http out id=%d status=%d bytes=%d dur_ms=%d", reqID, status, sw.bytes, time.Since(start).Milliseconds())
		})
	}
}

func WithAPIKey(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if key == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing_x_api_key"})
				return
			}
			if _, ok := cfg.AgentAPIKeys[key]; !ok {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "invalid_x_api_key"})
				return
			}
			ctx := context.WithValue(r.Context(), ctxCallerKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithCORS(cfg config.Config) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	allowAll := len(allowed) == 0

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin != "" {
				_, ok := allowed[origin]
				if allowAll || ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CallerKey(r *http.Request) string {
	v, _ := r.Context().Value(ctxCallerKey).(string)
	return strings.TrimSpace(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
