package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadRegistry_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "query.yaml", `
name: query
steps:
  - name: retrieve
    agent: information_retriever
    input:
      question: "{{question}}"
    output: retrieval
`)
	writeFile(t, dir, "ingestion.json", `{
  "name": "ingestion",
  "steps": [
    {"name": "ingest", "agent": "ingestor", "output": "ingest_result"}
  ]
}`)

	registry, err := LoadRegistry(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(registry.List()) != 2 {
		t.Fatalf("expected 2 workflows, got %v", registry.List())
	}

	query, err := registry.Get("query")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(query.Steps) != 1 || query.Steps[0].Agent != "information_retriever" {
		t.Fatalf("unexpected steps: %+v", query.Steps)
	}
	if query.Steps[0].Input["question"] != "{{question}}" {
		t.Fatalf("placeholder not preserved: %v", query.Steps[0].Input)
	}
}

func TestLoadRegistry_DuplicateNameOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", `
name: query
description: first
steps: []
`)
	writeFile(t, dir, "b.yaml", `
name: query
description: second
steps: []
`)

	registry, err := LoadRegistry(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(registry.List()) != 1 {
		t.Fatalf("expected single workflow, got %v", registry.List())
	}
	wf, _ := registry.Get("query")
	if wf.Description != "second" {
		t.Fatalf("expected later file to win, got %q", wf.Description)
	}
}

func TestLoadRegistry_SkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{not json`)
	writeFile(t, dir, "unnamed.yaml", `steps: []`)
	writeFile(t, dir, "notes.txt", `ignored`)
	writeFile(t, dir, "good.yaml", "name: good\nsteps: []\n")

	registry, err := LoadRegistry(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(registry.List()) != 1 || registry.List()[0] != "good" {
		t.Fatalf("expected only the good workflow, got %v", registry.List())
	}
}

func TestLoadRegistry_MissingDirectory(t *testing.T) {
	registry, err := LoadRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected empty registry, got error %v", err)
	}
	if len(registry.List()) != 0 {
		t.Fatalf("expected no workflows, got %v", registry.List())
	}
}

func TestRegistryGet_Unknown(t *testing.T) {
	registry := &Registry{workflows: map[string]Workflow{}}
	if _, err := registry.Get("missing"); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}
