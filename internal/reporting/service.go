package reporting

import (
	"context"
	"errors"
	"time"

	"callaudit-platform/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// passingScore is the overall score at or above which an audit counts as a
// pass for rate aggregation.
const passingScore = 70

// ReportStat is the slice of an audit report the summary needs.
type ReportStat struct {
	OverallScore int
	CreatedAt    time.Time
}

// Repository abstracts data access for reporting.
// Implementations query the immutable call and report rows; summaries never
// write anything.
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time, campaignID string) ([]calls.Call, error)
	ListReportStats(ctx context.Context, from, to time.Time) ([]ReportStat, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To, req.CampaignID)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Range: req.Range, CampaignID: req.CampaignID}
	for _, c := range rows {
		out.Pipeline.TotalCalls++
		out.Pipeline.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.Pipeline.RecordedCalls++
		}
		switch c.Status {
		case calls.StatusPending:
			out.Pipeline.PendingCalls++
		case calls.StatusProcessing:
			out.Pipeline.ProcessingCalls++
		case calls.StatusTranscribed:
			out.Pipeline.TranscribedCalls++
		case calls.StatusAudited:
			out.Pipeline.AuditedCalls++
		case calls.StatusFailed:
			out.Pipeline.FailedCalls++
		}
	}
	if out.Pipeline.TotalCalls > 0 {
		out.Pipeline.AverageDurationSeconds = out.Pipeline.TotalDurationSeconds / out.Pipeline.TotalCalls
	}

	stats, err := s.repo.ListReportStats(ctx, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}
	if len(stats) > 0 {
		var sum, passed int
		out.Quality.MinScore = stats[0].OverallScore
		out.Quality.MaxScore = stats[0].OverallScore
		for _, st := range stats {
			sum += st.OverallScore
			if st.OverallScore >= passingScore {
				passed++
			}
			if st.OverallScore < out.Quality.MinScore {
				out.Quality.MinScore = st.OverallScore
			}
			if st.OverallScore > out.Quality.MaxScore {
				out.Quality.MaxScore = st.OverallScore
			}
		}
		out.Quality.Reports = len(stats)
		out.Quality.AverageOverallScore = float64(sum) / float64(len(stats))
		out.Quality.PassRate = float64(passed) / float64(len(stats))
	}
	return out, nil
}
