package webd

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ghandlers "github.com/gorilla/handlers"
)

// tokenAuthenticationMiddleware checks the request token against Config.Token.
// The token is read from "Authorization: Bearer <token>" or the api_token query param.
// A wrong token gets 403 Forbidden. If no token is configured, all requests pass.
func (s *WebDaemon) tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		validToken := s.Config.Token
		if validToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("api_token")
		}

		if token != validToken {
			s.logger.Warn("Invalid token",
				"method", r.Method, "url", r.URL.Path,
				"remote", r.RemoteAddr, "user-agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		w.Header().Add("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// https://github.com/gorilla/mux#middleware

// loggingMiddleware logs one line per request, warning on client errors
// and erroring on server errors.
func loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, writeLog)
}

func writeLog(_ io.Writer, params ghandlers.LogFormatterParams) {
	level := slog.LevelInfo
	switch {
	case params.StatusCode >= 500:
		level = slog.LevelError
	case params.StatusCode >= 400:
		level = slog.LevelWarn
	}
	slog.Log(params.Request.Context(), level, "Request",
		"d", "web",
		"method", params.Request.Method,
		"uri", params.URL.RequestURI(),
		"status", params.StatusCode,
		"size", params.Size,
		"remote", params.Request.RemoteAddr,
		"took", time.Since(params.TimeStamp).Round(time.Microsecond))
}
