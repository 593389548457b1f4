package loam

import (
	"context"
	"fmt"
	"math"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/handoff/internal/compare"
	"github.com/aretw0/handoff/pkg/domain"
	"github.com/aretw0/loam"
)

// DefaultScope holds documents at the repository root that declare no scope.
const DefaultScope = "default"

// ConfigStore adapts the Loam library to the ports.ConfigStore interface.
type ConfigStore struct {
	Repo *loam.TypedRepository[AgentMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[AgentMetadata]) *ConfigStore {
	return &ConfigStore{Repo: repo}
}

// Open initializes a read-only, strict Loam repository at dir.
func Open(dir string) (*ConfigStore, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numbers as json.Number across serializers.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[AgentMetadata](repo)), nil
}

type entry struct {
	scope string
	node  domain.AgentNode
	edges []domain.TransitionEdge
}

func (c *ConfigStore) load(ctx context.Context) ([]entry, error) {
	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	entries := make([]entry, 0, len(docs))
	for _, doc := range docs {
		meta := doc.Data

		rawID := meta.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := path.Base(trimExtension(rawID))

		scope := meta.Scope
		if scope == "" {
			scope = scopeOf(doc.ID)
		}

		key := scope + "/" + id
		if existing, ok := seen[key]; ok {
			return nil, fmt.Errorf("collision detected: agent '%s' is defined in both '%s' and '%s'", key, existing, doc.ID)
		}
		seen[key] = doc.ID

		instructions, err := c.instructions(ctx, doc.ID, meta.Instructions, doc.Content)
		if err != nil {
			return nil, err
		}
		agentType := meta.Type
		if agentType == "" {
			agentType = domain.AgentTypeGeneral
		}

		e := entry{
			scope: scope,
			node: domain.AgentNode{
				ID:           id,
				Name:         meta.Name,
				Description:  meta.Description,
				Type:         agentType,
				Instructions: instructions,
				Provider:     meta.Provider,
				Tools:        meta.Tools,
				Config:       meta.Config,
			},
		}
		for i, t := range meta.Transitions {
			prio, err := priority(t.Priority)
			if err != nil {
				return nil, fmt.Errorf("agent '%s' transition %d: %w", key, i, err)
			}
			e.edges = append(e.edges, domain.TransitionEdge{
				ID:          t.ID,
				From:        id,
				To:          t.To,
				Kind:        domain.ConditionKind(t.Kind),
				Condition:   t.Condition,
				Priority:    prio,
				ToolID:      t.ToolID,
				Description: t.Description,
			})
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].node.ID < entries[j].node.ID })
	return entries, nil
}

// instructions prefers the frontmatter, then the markdown body.
// List does not carry document bodies, so the body is fetched with Get.
func (c *ConfigStore) instructions(ctx context.Context, docID, fromMeta, content string) (string, error) {
	if fromMeta != "" {
		return fromMeta, nil
	}
	if content == "" {
		doc, err := c.Repo.Get(ctx, docID)
		if err != nil {
			return "", fmt.Errorf("loam get failed for %s: %w", docID, err)
		}
		content = doc.Content
	}
	return strings.TrimSpace(content), nil
}

// LoadAgents returns the agents of the scope, ordered by ID.
func (c *ConfigStore) LoadAgents(ctx context.Context, scopeID string) ([]domain.AgentNode, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	var agents []domain.AgentNode
	for _, e := range entries {
		if e.scope == scopeID {
			agents = append(agents, e.node)
		}
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrScopeNotFound, scopeID)
	}
	return agents, nil
}

// LoadTransitions returns the transitions declared by the scope's agents.
func (c *ConfigStore) LoadTransitions(ctx context.Context, scopeID string) ([]domain.TransitionEdge, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	var edges []domain.TransitionEdge
	for _, e := range entries {
		if e.scope == scopeID {
			edges = append(edges, e.edges...)
		}
	}
	return edges, nil
}

// ListScopes returns every scope that holds at least one agent.
func (c *ConfigStore) ListScopes(ctx context.Context) ([]string, error) {
	entries, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var scopes []string
	for _, e := range entries {
		if !seen[e.scope] {
			seen[e.scope] = true
			scopes = append(scopes, e.scope)
		}
	}
	sort.Strings(scopes)
	return scopes, nil
}

// Watch emits the scope of every changed document until ctx is done.
func (c *ConfigStore) Watch(ctx context.Context) (<-chan string, error) {
	events, err := c.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				scope := scopeOf(evt.ID)
				if doc, err := c.Repo.Get(ctx, evt.ID); err == nil && doc.Data.Scope != "" {
					scope = doc.Data.Scope
				}
				select {
				case ch <- scope:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func priority(v any) (int, error) {
	if v == nil {
		return 0, nil
	}
	f, ok := compare.Number(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("priority must be an integer, got %v", v)
	}
	return int(f), nil
}

func scopeOf(docID string) string {
	dir := path.Dir(filepath.ToSlash(docID))
	if dir == "." || dir == "/" || dir == "" {
		return DefaultScope
	}
	return dir
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
