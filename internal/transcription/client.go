package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrDownloadFailed      = errors.New("transcription: recording download failed")
	ErrTranscriptionFailed = errors.New("transcription: backend failed")
	ErrTooShort            = errors.New("transcription: transcript below minimum length")
)

// Client is the speech-to-text contract used by the stage.
type Client interface {
	Transcribe(ctx context.Context, recordingURL string) (string, error)
}

// HTTPClient drives an async speech-to-text backend: publish the recording
// locator, poll until the job settles, then download the transcript text.
type HTTPClient struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
}

type HTTPClientConfig struct {
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
}

func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	maxWait := cfg.Timeout
	if maxWait <= 0 {
		maxWait = 90 * time.Second
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &HTTPClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		client:       &http.Client{Timeout: 15 * time.Second},
		pollInterval: interval,
		maxWait:      maxWait,
	}
}

type publishRequest struct {
	RecordingURL string `json:"recording_url"`
}

type jobResponse struct {
	JobID         string `json:"job_id"`
	Status        string `json:"status"` // queued, processing, completed, failed
	TranscriptURL string `json:"transcript_url,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (c *HTTPClient) Transcribe(ctx context.Context, recordingURL string) (string, error) {
	if recordingURL == "" {
		return "", fmt.Errorf("%w: empty recording locator", ErrDownloadFailed)
	}

	job, err := c.publish(ctx, recordingURL)
	if err != nil {
		return "", err
	}

	// The backend may report an already-transcribed recording immediately.
	if job.Status == "completed" && job.TranscriptURL != "" {
		return c.downloadText(ctx, job.TranscriptURL)
	}

	final, err := c.pollUntilDone(ctx, job.JobID)
	if err != nil {
		return "", err
	}
	return c.downloadText(ctx, final.TranscriptURL)
}

func (c *HTTPClient) publish(ctx context.Context, recordingURL string) (jobResponse, error) {
	payload, _ := json.Marshal(publishRequest{RecordingURL: recordingURL})

	var out jobResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.doJSON(req, &out)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 15 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return jobResponse{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	if out.Status == "failed" {
		return jobResponse{}, jobError(out)
	}
	return out, nil
}

func (c *HTTPClient) pollUntilDone(ctx context.Context, jobID string) (jobResponse, error) {
	deadline := time.Now().Add(c.maxWait)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return jobResponse{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		u, _ := url.Parse(c.baseURL + "/status")
		q := u.Query()
		q.Set("job_id", jobID)
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return jobResponse{}, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
		}

		var s jobResponse
		if err := c.doJSON(req, &s); err != nil {
			continue
		}
		switch s.Status {
		case "completed":
			if s.TranscriptURL == "" {
				return jobResponse{}, fmt.Errorf("%w: completed without transcript url", ErrTranscriptionFailed)
			}
			return s, nil
		case "failed":
			return jobResponse{}, jobError(s)
		}
	}
	return jobResponse{}, fmt.Errorf("%w: job %s did not complete in %s", ErrTranscriptionFailed, jobID, c.maxWait)
}

func (c *HTTPClient) downloadText(ctx context.Context, textURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: transcript fetch status %d", ErrTranscriptionFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	return string(data), nil
}

func (c *HTTPClient) doJSON(req *http.Request, target any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return backoff.Permanent(fmt.Errorf("backend status %d: %s", resp.StatusCode, body))
	}
	if err := json.Unmarshal(body, target); err != nil {
		return backoff.Permanent(fmt.Errorf("malformed backend response: %v", err))
	}
	return nil
}

// jobError maps a failed backend job to the stage error taxonomy. The backend
// distinguishes "could not fetch the recording" from transcription errors.
func jobError(j jobResponse) error {
	if j.ErrorCode == "download_failed" {
		return fmt.Errorf("%w: %s", ErrDownloadFailed, j.Reason)
	}
	return fmt.Errorf("%w: %s", ErrTranscriptionFailed, j.Reason)
}
