package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"novelforge/internal/checkpoint"
	"novelforge/internal/domain"
	"novelforge/internal/domain/jsoncfg"
	"novelforge/internal/generation"
	"novelforge/internal/infra"
)

func sqliteConfig(t *testing.T, export string) *infra.Config {
	t.Helper()
	dir := t.TempDir()
	return &infra.Config{
		StoreDriver:    infra.StoreDriverSQLite,
		SQLitePath:     filepath.Join(dir, "novels.db"),
		LLMProvider:    infra.LLMProviderOpenAI,
		LLMTimeout:     time.Minute,
		ExportBackend:  export,
		StoragePath:    filepath.Join(dir, "storage"),
		StorageBaseURL: "http://localhost:8080/static",
	}
}

func TestBuildFallsBackToSyntheticWithoutKey(t *testing.T) {
	deps, err := Build(context.Background(), sqliteConfig(t, infra.ExportBackendNone), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer deps.Close()

	if deps.Generator.Name() != "synthetic" {
		t.Fatalf("generator = %q, want synthetic", deps.Generator.Name())
	}
	if deps.Exporter != nil || deps.StaticDir != "" {
		t.Fatal("export backend none must not configure an exporter")
	}
	if err := deps.Store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestBuildUsesConfiguredOpenAIKey(t *testing.T) {
	cfg := sqliteConfig(t, infra.ExportBackendNone)
	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIModel = "gpt-4o"
	deps, err := Build(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer deps.Close()
	if deps.Generator.Name() != "openai:gpt-4o" {
		t.Fatalf("generator = %q", deps.Generator.Name())
	}
}

func TestBuildRejectsBrokenProfile(t *testing.T) {
	cfg := sqliteConfig(t, infra.ExportBackendNone)
	cfg.GenerationProfilePath = filepath.Join("testdata", "broken_profile.yaml")
	if _, err := Build(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected an error for an invalid profile")
	}
}

func TestBuildExportsCompletedNovels(t *testing.T) {
	cfg := sqliteConfig(t, infra.ExportBackendFile)
	cfg.LLMProvider = infra.LLMProviderSynthetic
	deps, err := Build(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer deps.Close()
	if deps.StaticDir == "" {
		t.Fatal("file export should expose its directory")
	}

	ctx := context.Background()
	n, err := deps.Service.Create(ctx, generation.CreateInput{
		OwnerID: "owner-1",
		Parameters: jsoncfg.NovelParameters{
			Title:        "Tidewater",
			PrimaryGenre: "Drama",
			PrimaryTheme: "Family",
		},
		DriveMode: domain.DriveServer,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := deps.Orchestrator.Drive(ctx, n.ID); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	progress, err := deps.Reporter.Progress(ctx, n.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress.Status != checkpoint.StatusCompleted {
		t.Fatalf("status = %q", progress.Status)
	}

	stored, err := deps.Store.Get(ctx, n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	url, err := deps.Exporter.DownloadURL(ctx, stored, time.Minute)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	want := "http://localhost:8080/static/" + generation.ManuscriptKey(stored)
	if url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}
}
