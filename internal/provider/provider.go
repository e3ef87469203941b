package provider

import (
	"context"
	"errors"
)

// Provider is the uniform contract over the two language-model backends.
//
// CheckAvailability is a non-blocking health probe: any network error or
// non-JSON response means unavailable. It never returns an error.
// RunCompletion is a blocking network call bounded by the caller's context.
type Provider interface {
	Name() string
	// Model is the identifier recorded alongside every produced result.
	Model() string
	CheckAvailability(ctx context.Context) bool
	RunCompletion(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)
}

// Options carry per-request completion settings.
type Options struct {
	Temperature float64
	MaxTokens   int
}

var (
	ErrNoProviderAvailable = errors.New("provider: no language-model backend available")
	ErrRequestFailed       = errors.New("provider: completion request failed")
)

// Choice is the outcome of the backend selection policy.
type Choice string

const (
	ChoiceLocal Choice = "local"
	ChoiceCloud Choice = "cloud"
	ChoiceNone  Choice = "none"
)

// Select is the pure backend decision: prefer local when it is up, fall back
// to cloud when a credential is configured, otherwise nothing. Callers must
// treat ChoiceNone as a hard error, never as a stubbed default score.
func Select(preferLocal, localAvailable, cloudCredentialPresent bool) Choice {
	if preferLocal && localAvailable {
		return ChoiceLocal
	}
	if cloudCredentialPresent {
		return ChoiceCloud
	}
	if localAvailable {
		return ChoiceLocal
	}
	return ChoiceNone
}

// Selector binds the decision function to concrete backends.
type Selector struct {
	Local       Provider
	Cloud       Provider
	PreferLocal bool
}

// Pick probes availability and returns the chosen backend, or
// ErrNoProviderAvailable when neither can serve.
func (s Selector) Pick(ctx context.Context) (Provider, error) {
	localUp := s.Local != nil && s.Local.CheckAvailability(ctx)
	cloudReady := s.Cloud != nil

	switch Select(s.PreferLocal, localUp, cloudReady) {
	case ChoiceLocal:
		return s.Local, nil
	case ChoiceCloud:
		return s.Cloud, nil
	default:
		return nil, ErrNoProviderAvailable
	}
}
