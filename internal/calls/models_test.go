package calls

import (
	"context"
	"testing"
	"time"
)

func strptr(s string) *string { return &s }

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to CallStatus }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusTranscribed},
		{StatusPending, StatusFailed},
		{StatusProcessing, StatusTranscribed},
		{StatusProcessing, StatusAudited},
		{StatusProcessing, StatusFailed},
		{StatusProcessing, StatusPending},
		{StatusTranscribed, StatusProcessing},
		{StatusTranscribed, StatusAudited},
		{StatusTranscribed, StatusFailed},
		{StatusFailed, StatusPending},
		{StatusFailed, StatusTranscribed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to CallStatus }{
		{StatusAudited, StatusPending},
		{StatusAudited, StatusTranscribed},
		{StatusAudited, StatusFailed},
		{StatusTranscribed, StatusPending},
		{StatusPending, StatusAudited},
		{StatusFailed, StatusAudited},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestRetryStageFor(t *testing.T) {
	c := Call{Status: StatusFailed}
	if got := RetryStageFor(c); got != RetryStageTranscription {
		t.Fatalf("failed call without transcript should retry at transcription, got %s", got)
	}

	c.Transcript = strptr("hello, thanks for calling")
	if got := RetryStageFor(c); got != RetryStageAudit {
		t.Fatalf("failed call with transcript should retry at audit, got %s", got)
	}

	c.Status = StatusAudited
	if got := RetryStageFor(c); got != RetryStageNone {
		t.Fatalf("audited call is not retryable, got %s", got)
	}
}

func TestValidate_AuditedInvariant(t *testing.T) {
	c := Call{ID: "c1", UserID: "u1", Status: StatusAudited}
	if err := c.Validate(); err == nil {
		t.Fatalf("audited call without transcript must be invalid")
	}

	c.Transcript = strptr("transcript text")
	if err := c.Validate(); err == nil {
		t.Fatalf("audited call without report id must be invalid")
	}

	c.AuditReportID = strptr("r1")
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// report linked before audit completes is inconsistent
	c.Status = StatusTranscribed
	if err := c.Validate(); err == nil {
		t.Fatalf("report linked to non-audited call must be invalid")
	}
}

func TestStaleProcessing(t *testing.T) {
	now := time.Now()
	old := now.Add(-30 * time.Minute)
	c := Call{Status: StatusProcessing, ProcessingStartedAt: &old}
	if !c.StaleProcessing(now, 10*time.Minute) {
		t.Fatalf("expected stale")
	}
	recent := now.Add(-time.Minute)
	c.ProcessingStartedAt = &recent
	if c.StaleProcessing(now, 10*time.Minute) {
		t.Fatalf("expected fresh")
	}
}

func TestMemoryRepo_ClaimBatchIsDeterministicAndExclusive(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"c-b", "c-a", "c-c"} {
		err := repo.Create(ctx, Call{
			ID:           id,
			UserID:       "u1",
			Status:       StatusPending,
			RecordingURL: "https://rec.example/" + id,
			CreatedAt:    base.Add(time.Duration(i%2) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	now := base.Add(time.Hour)
	first, err := repo.ClaimBatch(ctx, 2, now.Add(-10*time.Minute), now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 claimed, got %d", len(first))
	}
	// created_at then id ordering: c-b and c-c share the earlier timestamp.
	if first[0].ID != "c-b" || first[1].ID != "c-c" {
		t.Fatalf("unexpected claim order: %s, %s", first[0].ID, first[1].ID)
	}

	// A second run must not re-claim rows already in processing.
	second, err := repo.ClaimBatch(ctx, 10, now.Add(-10*time.Minute), now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(second) != 1 || second[0].ID != "c-a" {
		t.Fatalf("expected only c-a left, got %+v", second)
	}
}

func TestMemoryRepo_ClaimBatchReclaimsStaleProcessing(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := repo.Create(ctx, Call{
		ID:                  "c-stuck",
		UserID:              "u1",
		Status:              StatusProcessing,
		RecordingURL:        "https://rec.example/c-stuck",
		ProcessingStartedAt: &started,
		CreatedAt:           started,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now := started.Add(time.Hour)
	claimed, err := repo.ClaimBatch(ctx, 5, now.Add(-10*time.Minute), now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != "c-stuck" {
		t.Fatalf("expected stale processing call to be reclaimed, got %+v", claimed)
	}
	if claimed[0].ProcessingStartedAt == nil || !claimed[0].ProcessingStartedAt.Equal(now) {
		t.Fatalf("expected claim timestamp to be refreshed")
	}
}

func TestMemoryRepo_MarkAuditedRequiresLegalTransition(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	if err := repo.Create(ctx, Call{ID: "c1", UserID: "u1", Status: StatusPending}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.MarkAudited(ctx, "c1", "r1"); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition from pending, got %v", err)
	}

	if _, err := repo.Claim(ctx, "c1", time.Now().UTC()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.StoreTranscript(ctx, "c1", "some transcript"); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if err := repo.MarkAudited(ctx, "c1", "r1"); err != nil {
		t.Fatalf("audited: %v", err)
	}

	c, _ := repo.GetByID(ctx, "c1")
	if err := c.Validate(); err != nil {
		t.Fatalf("invariant violated after audit: %v", err)
	}
	if err := repo.MarkFailed(ctx, "c1", "boom"); err != ErrInvalidTransition {
		t.Fatalf("audited is terminal, got %v", err)
	}
}

func TestMemoryRepo_StoredTranscriptKeepsClaim(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	err := repo.Create(ctx, Call{
		ID:           "c1",
		UserID:       "u1",
		Status:       StatusPending,
		RecordingURL: "https://rec.example/c1.wav",
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now := created.Add(time.Minute)
	claimed, err := repo.ClaimBatch(ctx, 5, now.Add(-10*time.Minute), now)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	if err := repo.StoreTranscript(ctx, "c1", "Agent: hello. Customer: hi."); err != nil {
		t.Fatalf("store transcript: %v", err)
	}
	c, _ := repo.GetByID(ctx, "c1")
	if c.Status != StatusProcessing {
		t.Fatalf("storing the transcript must not release the claim, got %s", c.Status)
	}
	if !c.HasTranscript() {
		t.Fatalf("expected transcript stored")
	}

	// A second sweep while the claim holds must not hand the call out again.
	later := now.Add(time.Minute)
	again, err := repo.ClaimBatch(ctx, 5, later.Add(-10*time.Minute), later)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed call was handed out twice: %+v", again)
	}
}

func TestMemoryRepo_ClaimSingleCall(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	if err := repo.Create(ctx, Call{ID: "c1", UserID: "u1", Status: StatusPending, RecordingURL: "https://rec.example/c1.wav"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	c, err := repo.Claim(ctx, "c1", now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if c.Status != StatusProcessing || c.ProcessingStartedAt == nil || !c.ProcessingStartedAt.Equal(now) {
		t.Fatalf("claim must enter processing with a timestamp, got %+v", c)
	}

	if _, err := repo.Claim(ctx, "c1", now.Add(time.Second)); err != ErrAlreadyClaimed {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if _, err := repo.Claim(ctx, "missing", now); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.MarkFailed(ctx, "c1", "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := repo.Claim(ctx, "c1", now.Add(time.Minute)); err != ErrInvalidTransition {
		t.Fatalf("failed calls re-enter via retry, not claim, got %v", err)
	}
}
