package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestLoggerRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(Logger(zerolog.New(&buf)))
	r.Get("/v1/novels/{novel_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/novels/abc", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log entry %q: %v", buf.String(), err)
	}
	if entry["route"] != "/v1/novels/{novel_id}" || entry["path"] != "/v1/novels/abc" {
		t.Fatalf("route/path = %v / %v", entry["route"], entry["path"])
	}
	if entry["level"] != "warn" || entry["status"] != float64(404) || entry["bytes"] != float64(7) {
		t.Fatalf("entry = %v", entry)
	}
}

func TestLoggerHealthProbesAtDebug(t *testing.T) {
	var buf bytes.Buffer
	handler := Logger(zerolog.New(&buf).Level(zerolog.InfoLevel))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Fatalf("health probe logged at info: %s", buf.String())
	}
}
