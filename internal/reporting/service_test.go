package reporting

import (
	"context"
	"testing"
	"time"

	"callaudit-platform/internal/calls"
)

func TestSummary_CountsByStatusAndCampaign(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Calls = []calls.Call{
		{ID: "c1", CampaignID: "camp", Status: calls.StatusAudited, DurationSeconds: 30, RecordingURL: "https://rec/1.wav", CreatedAt: now},
		{ID: "c2", CampaignID: "camp", Status: calls.StatusFailed, DurationSeconds: 50, CreatedAt: now},
		{ID: "c3", CampaignID: "other", Status: calls.StatusAudited, DurationSeconds: 10, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.Summary(context.Background(), SummaryRequest{
		CampaignID: "camp",
		Range:      TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Pipeline.TotalCalls != 2 {
		t.Fatalf("expected 2 calls in campaign, got %d", out.Pipeline.TotalCalls)
	}
	if out.Pipeline.AuditedCalls != 1 || out.Pipeline.FailedCalls != 1 {
		t.Fatalf("status counts: %+v", out.Pipeline)
	}
	if out.Pipeline.AverageDurationSeconds != 40 {
		t.Fatalf("average duration: %d", out.Pipeline.AverageDurationSeconds)
	}
	if out.Pipeline.RecordedCalls != 1 {
		t.Fatalf("recorded calls: %d", out.Pipeline.RecordedCalls)
	}
}

func TestSummary_QualityAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Reports = []ReportStat{
		{OverallScore: 90, CreatedAt: now},
		{OverallScore: 67, CreatedAt: now},
		{OverallScore: 40, CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.Summary(context.Background(), SummaryRequest{
		Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.Quality.Reports != 3 {
		t.Fatalf("reports: %d", out.Quality.Reports)
	}
	if out.Quality.MinScore != 40 || out.Quality.MaxScore != 90 {
		t.Fatalf("bounds: %+v", out.Quality)
	}
	// 90 passes, 67 and 40 do not.
	if got := out.Quality.PassRate; got < 0.33 || got > 0.34 {
		t.Fatalf("pass rate: %v", got)
	}
}

func TestSummary_InvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()

	_, err := svc.Summary(context.Background(), SummaryRequest{Range: TimeRange{From: now, To: now.Add(-time.Hour)}})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
