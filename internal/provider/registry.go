package provider

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/everstacklabs/inkgen/internal/config"
)

// Registry resolves allow-listed backends to cached clients. The allow-list
// is fixed at construction: a backend is usable only when it is named in the
// configured providers list, carries a credential, and has a non-empty model
// list. One client is built per backend and reused for the process lifetime.
type Registry struct {
	allowed   []Descriptor
	defaultID ID
	factory   func(ID) Client

	mu      sync.RWMutex
	clients map[ID]Client
	group   singleflight.Group
}

// NewRegistry derives the backend allow-list from cfg.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		clients: make(map[ID]Client),
		factory: func(id ID) Client {
			switch id {
			case OpenAI:
				return NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.RPS)
			case Gemini:
				return NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.RPS)
			default:
				return nil
			}
		},
	}

	for _, name := range cfg.Providers {
		id, ok := ParseID(name)
		if !ok {
			continue
		}
		pc := providerConfig(cfg, id)
		if pc.APIKey == "" || len(pc.Models) == 0 {
			continue
		}
		r.allowed = append(r.allowed, Descriptor{ID: id, Models: append([]string(nil), pc.Models...)})
	}

	if id, ok := ParseID(cfg.DefaultProvider); ok && r.isAllowed(id) {
		r.defaultID = id
	} else if len(r.allowed) > 0 {
		r.defaultID = r.allowed[0].ID
	}

	return r
}

func providerConfig(cfg *config.Config, id ID) config.ProviderConfig {
	switch id {
	case OpenAI:
		return cfg.OpenAI
	case Gemini:
		return cfg.Gemini
	}
	return config.ProviderConfig{}
}

func (r *Registry) isAllowed(id ID) bool {
	for _, d := range r.allowed {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Allowed returns the allow-listed backend descriptors in configured order.
func (r *Registry) Allowed() []Descriptor {
	out := make([]Descriptor, len(r.allowed))
	copy(out, r.allowed)
	return out
}

// Default returns the preferred backend, or false if none is usable.
func (r *Registry) Default() (ID, bool) {
	if r.defaultID == "" {
		return "", false
	}
	return r.defaultID, true
}

// Descriptor returns the allow-list entry for id.
func (r *Registry) Descriptor(id ID) (Descriptor, bool) {
	for _, d := range r.allowed {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ModelAllowed reports whether model is in the allow-list for id.
func (r *Registry) ModelAllowed(id ID, model string) bool {
	d, ok := r.Descriptor(id)
	if !ok {
		return false
	}
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Resolve returns the cached client for id, building it on first access.
// Concurrent first accesses collapse onto one construction; losers reuse the
// winner's instance.
func (r *Registry) Resolve(id ID) (Client, error) {
	if !r.isAllowed(id) {
		return nil, fmt.Errorf("%w: %s", ErrUnconfigured, id)
	}

	r.mu.RLock()
	c, ok := r.clients[id]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := r.group.Do(string(id), func() (any, error) {
		r.mu.RLock()
		c, ok := r.clients[id]
		r.mu.RUnlock()
		if ok {
			return c, nil
		}

		c = r.factory(id)
		if c == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnconfigured, id)
		}

		r.mu.Lock()
		r.clients[id] = c
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Client), nil
}
