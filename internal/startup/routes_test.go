package startup

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"video-mosaic/internal/logging"
)

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/api/batches", noop).Methods(http.MethodPost).Name("submit")
	router.HandleFunc("/api/jobs/{id}", noop).Methods(http.MethodDelete)
	router.HandleFunc("/health", noop)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3", len(routes))
	}
	if routes[0].Method != http.MethodPost || routes[0].Name != "submit" {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[2].Method != "*" {
		t.Errorf("route without methods should report *, got %q", routes[2].Method)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/batches/state", "api/batches"},
		{"/api/jobs/{id}", "api/jobs"},
		{"/health", "health"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLogHTTPRoutes(t *testing.T) {
	out := captureLog(t, logging.LevelDebug)
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/api/batches", noop).Methods(http.MethodPost)
	router.HandleFunc("/livez", noop).Methods(http.MethodGet)

	LogHTTPRoutes(router, false)

	for _, want := range []string{"HTTP SERVER SETUP", "[api/batches]", "POST   /api/batches", "[livez]", "LOG_HEALTH_CHECKS=true"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}
