package config

import "testing"

func fakeGetenv(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestParseRequiresLayer(t *testing.T) {
	_, err := Parse(nil, fakeGetenv(map[string]string{"PG_CONNECTION": "postgres://x"}))
	if err == nil {
		t.Fatal("Parse with no layer argument expected error")
	}
}

func TestParseRequiresPGConnection(t *testing.T) {
	_, err := Parse([]string{"zoning"}, fakeGetenv(nil))
	if err == nil {
		t.Fatal("Parse with no PG_CONNECTION expected error")
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{"zoning"}, fakeGetenv(map[string]string{"PG_CONNECTION": "postgres://x"}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Layer != "zoning" {
		t.Errorf("Layer = %q, want zoning", cfg.Layer)
	}
	if len(cfg.Entities) != 0 {
		t.Errorf("Entities = %v, want empty", cfg.Entities)
	}
	if !cfg.RunDownload || !cfg.RunMetadata || !cfg.RunProcessing || !cfg.RunUpload || !cfg.RunSummary {
		t.Errorf("expected all stages enabled by default: %+v", cfg)
	}
	if cfg.TestMode || cfg.Debug || cfg.ProcessAnyway {
		t.Errorf("expected all boolean flags false by default: %+v", cfg)
	}
}

func TestParseEntitiesAndFlags(t *testing.T) {
	cfg, err := Parse(
		[]string{"--no-download", "--process-anyway", "zoning", "alachua_gainesville", "duval_*"},
		fakeGetenv(map[string]string{"PG_CONNECTION": "postgres://x"}),
	)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Layer != "zoning" {
		t.Errorf("Layer = %q, want zoning", cfg.Layer)
	}
	want := []string{"alachua_gainesville", "duval_*"}
	if len(cfg.Entities) != len(want) || cfg.Entities[0] != want[0] || cfg.Entities[1] != want[1] {
		t.Errorf("Entities = %v, want %v", cfg.Entities, want)
	}
	if cfg.RunDownload {
		t.Errorf("RunDownload = true, want false (--no-download set)")
	}
	if !cfg.ProcessAnyway {
		t.Errorf("ProcessAnyway = false, want true")
	}
}

func TestParseFlagsAfterPositionalArgs(t *testing.T) {
	cfg, err := Parse(
		[]string{"zoning", "alachua_gainesville", "--no-download", "--debug"},
		fakeGetenv(map[string]string{"PG_CONNECTION": "postgres://x"}),
	)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Layer != "zoning" || len(cfg.Entities) != 1 || cfg.Entities[0] != "alachua_gainesville" {
		t.Errorf("Layer/Entities = %q/%v, want zoning/[alachua_gainesville]", cfg.Layer, cfg.Entities)
	}
	if cfg.RunDownload {
		t.Errorf("RunDownload = true, want false (--no-download set after positional args)")
	}
	if !cfg.Debug {
		t.Errorf("Debug = false, want true")
	}
}
