package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/everstacklabs/inkgen/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Providers: []string{"gemini", "openai"},
		OpenAI: config.ProviderConfig{
			APIKey:  "sk-test",
			BaseURL: "https://api.openai.com/v1",
			Models:  []string{"gpt-4o", "gpt-4o-mini"},
			RPS:     10,
		},
		Gemini: config.ProviderConfig{
			APIKey:  "g-test",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Models:  []string{"gemini-2.0-flash-exp"},
			RPS:     10,
		},
	}
}

func TestAllowListRequiresCredentialAndModels(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []ID
	}{
		{"both usable", func(c *config.Config) {}, []ID{Gemini, OpenAI}},
		{"missing openai key", func(c *config.Config) { c.OpenAI.APIKey = "" }, []ID{Gemini}},
		{"empty gemini models", func(c *config.Config) { c.Gemini.Models = nil }, []ID{OpenAI}},
		{"not in providers list", func(c *config.Config) { c.Providers = []string{"openai"} }, []ID{OpenAI}},
		{"nothing usable", func(c *config.Config) {
			c.OpenAI.APIKey = ""
			c.Gemini.Models = nil
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			r := NewRegistry(cfg)

			allowed := r.Allowed()
			if len(allowed) != len(tt.want) {
				t.Fatalf("got %d allowed, want %d", len(allowed), len(tt.want))
			}
			for i, id := range tt.want {
				if allowed[i].ID != id {
					t.Errorf("allowed[%d] = %s, want %s", i, allowed[i].ID, id)
				}
			}
		})
	}
}

func TestDefaultProvider(t *testing.T) {
	t.Run("explicit default preferred", func(t *testing.T) {
		cfg := testConfig()
		cfg.DefaultProvider = "openai"
		r := NewRegistry(cfg)

		def, ok := r.Default()
		if !ok || def != OpenAI {
			t.Errorf("got %v %v, want openai", def, ok)
		}
	})

	t.Run("falls back to first allowed", func(t *testing.T) {
		cfg := testConfig()
		cfg.DefaultProvider = "openai"
		cfg.OpenAI.APIKey = ""
		r := NewRegistry(cfg)

		def, ok := r.Default()
		if !ok || def != Gemini {
			t.Errorf("got %v %v, want gemini", def, ok)
		}
	})

	t.Run("none usable", func(t *testing.T) {
		cfg := testConfig()
		cfg.OpenAI.APIKey = ""
		cfg.Gemini.APIKey = ""
		r := NewRegistry(cfg)

		if _, ok := r.Default(); ok {
			t.Error("expected no default provider")
		}
	})
}

func TestModelAllowed(t *testing.T) {
	r := NewRegistry(testConfig())

	if !r.ModelAllowed(OpenAI, "gpt-4o") {
		t.Error("gpt-4o should be allowed for openai")
	}
	if r.ModelAllowed(OpenAI, "gpt-3.5-turbo") {
		t.Error("gpt-3.5-turbo is not in the allow-list")
	}
	if r.ModelAllowed(Gemini, "gpt-4o") {
		t.Error("model lists must not leak across providers")
	}
}

func TestResolveUnconfigured(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAI.APIKey = ""
	r := NewRegistry(cfg)

	_, err := r.Resolve(OpenAI)
	if !errors.Is(err, ErrUnconfigured) {
		t.Errorf("got %v, want ErrUnconfigured", err)
	}
}

type countingClient struct {
	id ID
}

func (c *countingClient) Name() ID { return c.id }
func (c *countingClient) Generate(context.Context, string, string) (string, error) {
	return "", nil
}

func TestResolveCachesOneClientPerBackend(t *testing.T) {
	r := NewRegistry(testConfig())

	var built atomic.Int32
	r.factory = func(id ID) Client {
		built.Add(1)
		return &countingClient{id: id}
	}

	const goroutines = 16
	clients := make([]Client, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Resolve(Gemini)
			if err != nil {
				t.Errorf("Resolve: %v", err)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	if n := built.Load(); n != 1 {
		t.Errorf("factory ran %d times, want 1", n)
	}
	for i := 1; i < goroutines; i++ {
		if clients[i] != clients[0] {
			t.Fatal("concurrent resolves returned different instances")
		}
	}

	// Second backend gets its own instance, still exactly one.
	if _, err := r.Resolve(OpenAI); err != nil {
		t.Fatalf("Resolve openai: %v", err)
	}
	if n := built.Load(); n != 2 {
		t.Errorf("factory ran %d times after second backend, want 2", n)
	}
}
