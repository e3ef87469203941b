package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"callaudit-platform/internal/audit"
	"callaudit-platform/internal/calls"
	"callaudit-platform/internal/insights"
)

type stubStage struct {
	calls []string
	err   error
}

func (s *stubStage) Transcribe(ctx context.Context, callID string) error {
	s.calls = append(s.calls, callID)
	return s.err
}

type stubAuditor struct {
	calls []string
	err   error
}

func (s *stubAuditor) Run(ctx context.Context, callID, templateID string) (audit.Report, error) {
	s.calls = append(s.calls, callID)
	return audit.Report{CallID: callID}, s.err
}

type stubAnalyzer struct {
	calls []string
	err   error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, callID string, opts insights.AnalyzeOptions) (insights.CallAnalytics, error) {
	s.calls = append(s.calls, callID)
	return insights.CallAnalytics{CallID: callID}, s.err
}

type stubProcessor struct {
	calls   []string
	failFor map[string]error
}

func (s *stubProcessor) ProcessClaimed(ctx context.Context, callID string) error {
	s.calls = append(s.calls, callID)
	return s.failFor[callID]
}

type auditorFunc func(ctx context.Context, callID, templateID string) (audit.Report, error)

func (f auditorFunc) Run(ctx context.Context, callID, templateID string) (audit.Report, error) {
	return f(ctx, callID, templateID)
}

func seed(t *testing.T, repo *calls.MemoryRepo, c calls.Call) {
	t.Helper()
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seed %s: %v", c.ID, err)
	}
}

func TestRunner_SkipsTranscriptionWhenTranscriptPresent(t *testing.T) {
	repo := calls.NewMemoryRepo()
	transcript := "Agent: hello. Customer: hi."
	seed(t, repo, calls.Call{ID: "c1", Status: calls.StatusTranscribed, Transcript: &transcript})

	tr, au, an := &stubStage{}, &stubAuditor{}, &stubAnalyzer{}
	if err := NewRunner(repo, tr, au, an).ProcessCall(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.calls) != 0 {
		t.Fatalf("transcription must be skipped")
	}
	if len(au.calls) != 1 || len(an.calls) != 1 {
		t.Fatalf("audit and analytics must run: %v %v", au.calls, an.calls)
	}
}

func TestRunner_TranscribesFirstWhenNeeded(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(t, repo, calls.Call{ID: "c1", Status: calls.StatusPending, RecordingURL: "https://rec/1.wav"})

	tr, au, an := &stubStage{}, &stubAuditor{}, &stubAnalyzer{}
	if err := NewRunner(repo, tr, au, an).ProcessCall(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.calls) != 1 || len(au.calls) != 1 {
		t.Fatalf("expected transcribe then audit: %v %v", tr.calls, au.calls)
	}
}

func TestRunner_AuditErrorStopsPipeline(t *testing.T) {
	repo := calls.NewMemoryRepo()
	transcript := "Agent: hello. Customer: hi."
	seed(t, repo, calls.Call{ID: "c1", Status: calls.StatusTranscribed, Transcript: &transcript})

	tr, an := &stubStage{}, &stubAnalyzer{}
	au := &stubAuditor{err: errors.New("model unreachable")}
	if err := NewRunner(repo, tr, au, an).ProcessCall(context.Background(), "c1"); err == nil {
		t.Fatalf("expected audit error")
	}
	if len(an.calls) != 0 {
		t.Fatalf("analytics must not run after audit failure")
	}
}

func TestRunner_AnalyticsFailureIsSwallowed(t *testing.T) {
	repo := calls.NewMemoryRepo()
	transcript := "Agent: hello. Customer: hi."
	seed(t, repo, calls.Call{ID: "c1", Status: calls.StatusTranscribed, Transcript: &transcript})

	an := &stubAnalyzer{err: errors.New("analytics store down")}
	if err := NewRunner(repo, &stubStage{}, &stubAuditor{}, an).ProcessCall(context.Background(), "c1"); err != nil {
		t.Fatalf("analytics failure must not fail the pipeline: %v", err)
	}
}

func TestProcessBatch_FailureIsolation(t *testing.T) {
	repo := calls.NewMemoryRepo()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"c1", "c2", "c3"} {
		seed(t, repo, calls.Call{
			ID:           id,
			Status:       calls.StatusPending,
			RecordingURL: "https://rec/" + id + ".wav",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	proc := &stubProcessor{failFor: map[string]error{"c2": errors.New("boom")}}
	svc := NewService(repo, proc, nil, 10, 50, 10*time.Minute)

	res, err := svc.ProcessBatch(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 3 || res.Succeeded != 2 || res.Failed != 1 {
		t.Fatalf("counts: %+v", res)
	}
	// Deterministic selection order: oldest first.
	want := []string{"c1", "c2", "c3"}
	for i, id := range want {
		if proc.calls[i] != id {
			t.Fatalf("order: got %v want %v", proc.calls, want)
		}
	}
	if res.Results[1].Err == "" {
		t.Fatalf("failed call must carry its error: %+v", res.Results[1])
	}
}

func TestProcessBatch_SizeCappedAtMax(t *testing.T) {
	repo := calls.NewMemoryRepo()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"c1", "c2", "c3", "c4"} {
		seed(t, repo, calls.Call{
			ID:           id,
			Status:       calls.StatusPending,
			RecordingURL: "https://rec/" + id + ".wav",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	svc := NewService(repo, &stubProcessor{}, nil, 10, 2, 10*time.Minute)

	res, err := svc.ProcessBatch(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 2 {
		t.Fatalf("expected cap at 2, got %d", res.Processed)
	}
}

func TestProcessBatch_ReclaimsStaleProcessing(t *testing.T) {
	repo := calls.NewMemoryRepo()
	stale := time.Now().UTC().Add(-time.Hour)
	fresh := time.Now().UTC()
	seed(t, repo, calls.Call{ID: "stuck", Status: calls.StatusProcessing, RecordingURL: "https://rec/s.wav", ProcessingStartedAt: &stale})
	seed(t, repo, calls.Call{ID: "active", Status: calls.StatusProcessing, RecordingURL: "https://rec/a.wav", ProcessingStartedAt: &fresh})

	proc := &stubProcessor{}
	svc := NewService(repo, proc, nil, 10, 50, 10*time.Minute)

	res, err := svc.ProcessBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Processed != 1 || proc.calls[0] != "stuck" {
		t.Fatalf("expected only the stale row reclaimed: %+v %v", res, proc.calls)
	}
}

func TestRunner_HoldsClaimUntilPipelineEnds(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(t, repo, calls.Call{ID: "c1", Status: calls.StatusPending, RecordingURL: "https://rec/1.wav"})

	au := auditorFunc(func(ctx context.Context, callID, templateID string) (audit.Report, error) {
		// Mid-pipeline the call must still be claimed and invisible to a
		// concurrent sweep.
		c, err := repo.GetByID(ctx, callID)
		if err != nil {
			return audit.Report{}, err
		}
		if c.Status != calls.StatusProcessing {
			t.Errorf("claim released mid-pipeline, status %s", c.Status)
		}
		now := time.Now().UTC()
		swept, err := repo.ClaimBatch(ctx, 10, now.Add(-10*time.Minute), now)
		if err != nil {
			return audit.Report{}, err
		}
		if len(swept) != 0 {
			t.Errorf("concurrent sweep claimed an in-flight call: %+v", swept)
		}
		return audit.Report{CallID: callID}, repo.MarkAudited(ctx, callID, "r1")
	})

	tr := &stubStage{}
	if err := NewRunner(repo, tr, au, &stubAnalyzer{}).ProcessCall(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.calls) != 1 {
		t.Fatalf("expected transcription to run once")
	}
}

func TestRunner_RejectsAlreadyClaimedCall(t *testing.T) {
	repo := calls.NewMemoryRepo()
	seed(t, repo, calls.Call{ID: "c1", Status: calls.StatusPending, RecordingURL: "https://rec/1.wav"})

	now := time.Now().UTC()
	if _, err := repo.ClaimBatch(context.Background(), 1, now.Add(-10*time.Minute), now); err != nil {
		t.Fatalf("claim: %v", err)
	}

	tr, au, an := &stubStage{}, &stubAuditor{}, &stubAnalyzer{}
	err := NewRunner(repo, tr, au, an).ProcessCall(context.Background(), "c1")
	if !errors.Is(err, calls.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if len(tr.calls) != 0 || len(au.calls) != 0 || len(an.calls) != 0 {
		t.Fatalf("no stage may run on a call another worker holds")
	}
}
