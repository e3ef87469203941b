package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestSelect(t *testing.T) {
	cases := []struct {
		preferLocal, localUp, cloudCred bool
		want                            Choice
	}{
		{true, true, true, ChoiceLocal},
		{true, true, false, ChoiceLocal},
		{true, false, true, ChoiceCloud},
		{true, false, false, ChoiceNone},
		{false, true, true, ChoiceCloud},
		{false, true, false, ChoiceLocal},
		{false, false, true, ChoiceCloud},
		{false, false, false, ChoiceNone},
	}
	for _, tc := range cases {
		got := Select(tc.preferLocal, tc.localUp, tc.cloudCred)
		if got != tc.want {
			t.Fatalf("Select(%v,%v,%v) = %s, want %s", tc.preferLocal, tc.localUp, tc.cloudCred, got, tc.want)
		}
	}
}

func TestSelector_PickNoProvider(t *testing.T) {
	s := Selector{PreferLocal: true}
	if _, err := s.Pick(context.Background()); err != ErrNoProviderAvailable {
		t.Fatalf("expected ErrNoProviderAvailable, got %v", err)
	}
}

func TestLocalProvider_CheckAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1"}]}`))
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "llama3.1"})
	if !p.CheckAvailability(context.Background()) {
		t.Fatalf("expected available")
	}
}

func TestLocalProvider_UnavailableOnNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not an api</html>"))
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "llama3.1"})
	if p.CheckAvailability(context.Background()) {
		t.Fatalf("expected unavailable for non-JSON body")
	}
}

func TestLocalProvider_UnavailableWhenNoModelsLoaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "llama3.1"})
	if p.CheckAvailability(context.Background()) {
		t.Fatalf("expected unavailable with zero loaded models")
	}
}

func TestLocalProvider_UnavailableWhenDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "llama3.1"})
	if p.CheckAvailability(context.Background()) {
		t.Fatalf("expected unavailable when the server is down")
	}
}

func TestLocalProvider_ModelSubstitution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5"},{"name":"mistral"}]}`))
		case "/api/chat":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"ok\":true}"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "not-loaded"})
	out, err := p.RunCompletion(context.Background(), "sys", "user", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected content %q", out)
	}
	if p.Model() != "qwen2.5" {
		t.Fatalf("expected substitution to first loaded model, got %q", p.Model())
	}

	// The resolution is memoized: a second completion must not re-resolve.
	if _, err := p.RunCompletion(context.Background(), "sys", "user", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != "qwen2.5" {
		t.Fatalf("expected stable resolved model, got %q", p.Model())
	}
}

func TestLocalProvider_KeepsConfiguredModelWhenLoaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5"},{"name":"llama3.1"}]}`))
		case "/api/chat":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{}"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "llama3.1"})
	if _, err := p.RunCompletion(context.Background(), "sys", "user", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Model() != "llama3.1" {
		t.Fatalf("configured model is loaded and must be kept, got %q", p.Model())
	}
}

func TestLocalProvider_ModelConcurrentWithResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"models":[{"name":"mistral"}]}`))
		case "/api/chat":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{}"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewLocalProvider(LocalConfig{BaseURL: srv.URL, Model: "not-loaded"})

	// Model is read while completions resolve the model lazily; run with
	// -race to verify the accesses are synchronized.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.RunCompletion(context.Background(), "sys", "user", Options{}); err != nil {
				t.Errorf("completion: %v", err)
			}
			_ = p.Model()
		}()
	}
	wg.Wait()

	if p.Model() != "mistral" {
		t.Fatalf("expected resolved model after completions, got %q", p.Model())
	}
}
