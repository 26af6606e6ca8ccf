package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"video-mosaic/internal/logging"
)

const eventStreamPath = "/api/events"

var healthPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// LoggingConfig selects which requests reach the access log.
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
	// LogEventStreams logs /api/events connections when they close.
	LogEventStreams bool
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogHealthChecks: true}
}

func (c LoggingConfig) skips(path string) bool {
	switch {
	case !c.LogHealthChecks && healthPaths[path]:
		return true
	case !c.LogEventStreams && path == eventStreamPath:
		return true
	}
	for _, prefix := range c.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Logger writes one W3C Extended Log Format line per request:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(User-Agent) cs(Referer)
//
// Server errors are logged at warn level.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skips(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			line := accessLine(r, rec, start)
			if rec.status >= http.StatusInternalServerError {
				logging.Warn("%s", line)
				return
			}
			logging.Printf("%s", line)
		})
	}
}

func accessLine(r *http.Request, rec *statusRecorder, start time.Time) string {
	ts := start.UTC()
	fields := []string{
		ts.Format("2006-01-02"),
		ts.Format("15:04:05"),
		w3cField(getClientIP(r)),
		w3cField(r.Method),
		w3cField(r.URL.Path),
		w3cField(r.URL.RawQuery),
		strconv.Itoa(rec.status),
		strconv.FormatInt(rec.written, 10),
		strconv.FormatInt(time.Since(start).Milliseconds(), 10),
		w3cField(r.Header.Get("User-Agent")),
		w3cField(r.Header.Get("Referer")),
	}
	return strings.Join(fields, " ")
}

// w3cField sanitizes a client-supplied value, writes "-" for empty and quotes
// values containing blanks.
func w3cField(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// sanitizeLogField drops control characters so a client cannot forge log
// lines or inject terminal escapes. Line breaks become spaces; tabs stay.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
