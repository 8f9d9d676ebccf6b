// Package workflow implements declarative multi-step pipelines: a data model
// for named workflows, a directory-backed registry, and an engine that
// executes steps against an agent registry while threading a shared context.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reporover/backend/pkg/logger"

	"gopkg.in/yaml.v3"
)

// Step is a single workflow step: which agent runs, what input it receives,
// and under which context key its result is stored. Input values that are
// strings of the form "{{a.b.c}}" are resolved against the running context.
type Step struct {
	Name        string         `json:"name" yaml:"name"`
	Agent       string         `json:"agent" yaml:"agent"`
	Input       map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
	Output      string         `json:"output,omitempty" yaml:"output,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// Workflow is an ordered list of steps under a unique name. Workflows are
// immutable once loaded.
type Workflow struct {
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Steps          []Step         `json:"steps" yaml:"steps"`
	InitialContext map[string]any `json:"initial_context,omitempty" yaml:"initial_context,omitempty"`
}

// Registry holds the workflows loaded from a definition directory, keyed by
// workflow name. It is loaded once per process lifetime.
type Registry struct {
	workflows map[string]Workflow
}

// LoadRegistry reads every workflow definition (*.yaml, *.yml, *.json) from
// dir. Files that fail to parse are logged and skipped; a duplicate workflow
// name overwrites the earlier one with a warning. A missing directory yields
// an empty registry, not an error.
func LoadRegistry(dir string) (*Registry, error) {
	registry := &Registry{
		workflows: make(map[string]Workflow),
	}

	logger.Info("[Workflow][LoadRegistry] Loading workflows", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("[Workflow][LoadRegistry] Workflow directory not found", "dir", dir)
			return registry, nil
		}
		return nil, fmt.Errorf("read workflow directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		wf, err := loadWorkflowFile(path, ext)
		if err != nil {
			logger.Error("[Workflow][LoadRegistry] Failed to load workflow", "file", path, "error", err)
			continue
		}

		if _, exists := registry.workflows[wf.Name]; exists {
			logger.Warn("[Workflow][LoadRegistry] Duplicate workflow name, overwriting", "name", wf.Name, "file", path)
		}
		registry.workflows[wf.Name] = wf
		logger.Info("[Workflow][LoadRegistry] Loaded workflow", "name", wf.Name, "steps", len(wf.Steps))
	}

	return registry, nil
}

func loadWorkflowFile(path, ext string) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workflow{}, err
	}

	var wf Workflow
	if ext == ".json" {
		err = json.Unmarshal(data, &wf)
	} else {
		err = yaml.Unmarshal(data, &wf)
	}
	if err != nil {
		return Workflow{}, err
	}

	if wf.Name == "" {
		return Workflow{}, fmt.Errorf("workflow has no name")
	}
	return wf, nil
}

// Get retrieves a loaded workflow by name.
func (r *Registry) Get(name string) (Workflow, error) {
	wf, ok := r.workflows[name]
	if !ok {
		return Workflow{}, fmt.Errorf("workflow %q not found", name)
	}
	return wf, nil
}

// List returns the names of all loaded workflows.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}
	return names
}
