package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/stepwise/distill"
)

func TestBuildDepsMaxStepsFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("KNOWLEDGE_CACHE_PATH", filepath.Join(t.TempDir(), "knowledge"))

	deps, err := buildDeps(Options{Provider: "openai", MaxSteps: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer deps.close()

	if deps.settings.Agent.MaxSteps != 7 {
		t.Errorf("expected the flag to override the step budget, got %d", deps.settings.Agent.MaxSteps)
	}
}

func TestOpenStorePicksBackendByPath(t *testing.T) {
	dir := t.TempDir()

	db, err := openStore(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()
	if _, ok := db.(*distill.SQLiteStore); !ok {
		t.Errorf("expected a SQLite store for a .db path, got %T", db)
	}

	files, err := openStore(filepath.Join(dir, "records"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer files.Close()
	if _, ok := files.(*distill.FileStore); !ok {
		t.Errorf("expected a file store for a directory path, got %T", files)
	}
}

func TestRunTaskRejectsUnknownTask(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("KNOWLEDGE_CACHE_PATH", filepath.Join(t.TempDir(), "knowledge"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/status" {
			t.Errorf("unexpected call to %s before task resolution", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"session_id": "sess-1",
			"tasks":      []map[string]string{{"task_id": "task-1"}},
		})
	}))
	defer srv.Close()
	t.Setenv("BENCH_BASE_URL", srv.URL)

	err := RunTask(context.Background(), Options{Provider: "openai"}, "sess-1", "task-404")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}
