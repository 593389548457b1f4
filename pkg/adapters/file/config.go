package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/handoff/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ErrScopeNotFound is returned when no document exists for a scope.
var ErrScopeNotFound = domain.ErrScopeNotFound

// extensions are tried in order when resolving a scope file.
var extensions = []string{".yaml", ".yml", ".json"}

// Scope is the document describing one agent graph.
type Scope struct {
	Agents      []domain.AgentNode      `json:"agents" yaml:"agents"`
	Transitions []domain.TransitionEdge `json:"transitions" yaml:"transitions"`
}

// ConfigStore implements ports.ConfigStore reading <dir>/<scope>.yaml (or .yml / .json).
type ConfigStore struct {
	Dir string
}

// NewConfigStore creates a config store rooted at dir.
func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{Dir: dir}
}

// LoadScope parses the whole document of a scope.
func (c *ConfigStore) LoadScope(_ context.Context, scopeID string) (*Scope, error) {
	if scopeID == "" || strings.ContainsAny(scopeID, `/\`) || scopeID == "." || scopeID == ".." {
		return nil, fmt.Errorf("invalid scope id %q", scopeID)
	}
	for _, ext := range extensions {
		path := filepath.Join(c.Dir, scopeID+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read scope file: %w", err)
		}
		return ParseScope(data, ext)
	}
	return nil, fmt.Errorf("%w: %s", ErrScopeNotFound, scopeID)
}

// ParseScope decodes a scope document; ext selects JSON or YAML.
func ParseScope(data []byte, ext string) (*Scope, error) {
	var s Scope
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &s)
	} else {
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse scope document: %w", err)
	}
	return &s, nil
}

// LoadAgents returns the agents of the scope.
func (c *ConfigStore) LoadAgents(ctx context.Context, scopeID string) ([]domain.AgentNode, error) {
	s, err := c.LoadScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	return s.Agents, nil
}

// LoadTransitions returns the transitions of the scope.
func (c *ConfigStore) LoadTransitions(ctx context.Context, scopeID string) ([]domain.TransitionEdge, error) {
	s, err := c.LoadScope(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	return s.Transitions, nil
}

// ListScopes returns the scope IDs found in the directory.
func (c *ConfigStore) ListScopes(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list scopes: %w", err)
	}

	seen := make(map[string]bool)
	var scopes []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !isScopeExt(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if !seen[id] {
			seen[id] = true
			scopes = append(scopes, id)
		}
	}
	sort.Strings(scopes)
	return scopes, nil
}

func isScopeExt(ext string) bool {
	for _, e := range extensions {
		if e == ext {
			return true
		}
	}
	return false
}
