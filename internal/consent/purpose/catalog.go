// Package purpose holds the consent purpose catalog and renders the legal
// text a guardian agrees to.
package purpose

import (
	"context"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"

	"consentd/internal/consent/models"
	"consentd/pkg/platform/sentinel"
)

// Catalog is an in-memory purpose registry. It is read-mostly: purposes are
// registered at startup and are immutable afterwards.
type Catalog struct {
	mu       sync.RWMutex
	purposes map[string]models.Purpose
}

// NewCatalog constructs a catalog seeded with the given purposes.
func NewCatalog(purposes ...models.Purpose) (*Catalog, error) {
	c := &Catalog{purposes: make(map[string]models.Purpose, len(purposes))}
	for _, p := range purposes {
		if err := c.Register(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Get returns the purpose for code or sentinel.ErrNotFound.
func (c *Catalog) Get(_ context.Context, code string) (models.Purpose, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.purposes[normalizeCode(code)]
	if !ok {
		return models.Purpose{}, sentinel.ErrNotFound
	}
	return clonePurpose(p), nil
}

// List returns every purpose ordered by code.
func (c *Catalog) List(_ context.Context) ([]models.Purpose, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Purpose, 0, len(c.purposes))
	for _, p := range c.purposes {
		out = append(out, clonePurpose(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Register adds a purpose. Re-registering an identical purpose is a no-op;
// changing the semantics of an existing code returns sentinel.ErrConflict.
func (c *Catalog) Register(_ context.Context, p models.Purpose) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.purposes[p.Code]; ok {
		if reflect.DeepEqual(existing, p) {
			return nil
		}
		return sentinel.ErrConflict
	}
	c.purposes[p.Code] = clonePurpose(p)
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func clonePurpose(p models.Purpose) models.Purpose {
	p.Jurisdictions = slices.Clone(p.Jurisdictions)
	return p
}
