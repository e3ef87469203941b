package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LocalProvider talks to an Ollama-compatible server: a health endpoint
// listing loaded models and a chat endpoint constrained to JSON output.
// Zero marginal cost, so it is preferred whenever the probe succeeds.
type LocalProvider struct {
	baseURL        string
	model          string
	probeTimeout   time.Duration
	requestTimeout time.Duration
	client         *http.Client

	// Model resolution happens lazily once per process: if the configured
	// model is not among the loaded ones, the first loaded model is used.
	// resolvedModel is read by Model while RunCompletion may be resolving,
	// so every access goes through mu.
	resolveOnce   sync.Once
	mu            sync.Mutex
	resolvedModel string
}

type LocalConfig struct {
	BaseURL        string
	Model          string
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
}

func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	probe := cfg.ProbeTimeout
	if probe <= 0 {
		probe = 2 * time.Second
	}
	req := cfg.RequestTimeout
	if req <= 0 {
		req = 120 * time.Second
	}
	return &LocalProvider{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		probeTimeout:   probe,
		requestTimeout: req,
		client:         &http.Client{Timeout: req},
	}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Model() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolvedModel != "" {
		return p.resolvedModel
	}
	return p.model
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckAvailability probes the model-list endpoint with a short timeout.
// Any transport error, non-2xx status, or unparsable body counts as
// unavailable; a reachable server with zero loaded models does too.
func (p *LocalProvider) CheckAvailability(ctx context.Context) bool {
	tags, err := p.fetchTags(ctx)
	if err != nil {
		return false
	}
	return len(tags.Models) > 0
}

func (p *LocalProvider) fetchTags(ctx context.Context) (tagsResponse, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return tagsResponse{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return tagsResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tagsResponse{}, fmt.Errorf("health probe status %d", resp.StatusCode)
	}
	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return tagsResponse{}, err
	}
	return tags, nil
}

// resolveModel substitutes the first loaded model when the configured one is
// not loaded. Memoized for the process lifetime.
func (p *LocalProvider) resolveModel(ctx context.Context) string {
	p.resolveOnce.Do(func() {
		name := p.model
		if tags, err := p.fetchTags(ctx); err == nil && len(tags.Models) > 0 {
			loaded := false
			for _, m := range tags.Models {
				if m.Name == p.model {
					loaded = true
					break
				}
			}
			if !loaded {
				name = tags.Models[0].Name
			}
		}
		p.mu.Lock()
		p.resolvedModel = name
		p.mu.Unlock()
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolvedModel
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

func (p *LocalProvider) RunCompletion(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	model := p.resolveModel(ctx)

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		// Ask the backend to constrain output to valid JSON.
		Format:  "json",
		Options: chatOptions{Temperature: opts.Temperature, NumPredict: opts.MaxTokens},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var content string
	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			return fmt.Errorf("local backend error: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("local backend rejected request: status %d", resp.StatusCode))
		}

		var parsed chatResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("local backend returned malformed response: %v", err))
		}
		content = parsed.Message.Content
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = p.requestTimeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	return content, nil
}
