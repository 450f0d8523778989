package main

import (
	"encoding/json"
	"testing"
)

func TestCatalogCommandsRoundTrip(t *testing.T) {
	env := setupCLITestEnv(t)

	steps := [][]string{
		{"catalog", "add-shot", "sh010"},
		{"catalog", "add-task", "sh010", "TA Layer Export"},
		{"catalog", "add-version", "sh010", "TA Layer Export", "sh010_taLayerExport_v001", "/shows/demo/v001.mov"},
		{"catalog", "add-version", "sh010", "TA Layer Export", "sh010_taLayerExport_v002", "/shows/demo/v002.mov", "--status", "omt"},
	}
	for _, args := range steps {
		if _, _, err := runCLI(t, args, env.configPath); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	out, _, err := runCLI(t, []string{"catalog", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, "sh010")

	out, _, err = runCLI(t, []string{"catalog", "list", "sh010"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list sh010: %v", err)
	}
	requireContains(t, out, "sh010_taLayerExport_v002")
	requireContains(t, out, "omt")

	out, _, err = runCLI(t, []string{"--json", "catalog", "list", "sh010"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list --json: %v", err)
	}
	var versions []struct {
		ID     int64
		Code   string
		Status string
	}
	if err := json.Unmarshal([]byte(out), &versions); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(versions) != 2 || versions[0].Code != "sh010_taLayerExport_v002" || versions[1].Status != "rev" {
		t.Fatalf("unexpected versions: %+v", versions)
	}

	if _, _, err := runCLI(t, []string{"catalog", "set-status", "1", "apr"}, env.configPath); err != nil {
		t.Fatalf("set-status: %v", err)
	}
	if _, _, err := runCLI(t, []string{"catalog", "set-status", "x", "apr"}, env.configPath); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestCatalogAddTaskUnknownShot(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"catalog", "add-task", "sh404", "Comp"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown shot")
	}
}
