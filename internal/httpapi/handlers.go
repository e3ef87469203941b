package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"callaudit-platform/internal/audit"
	"callaudit-platform/internal/auth"
	"callaudit-platform/internal/calls"
	"callaudit-platform/internal/ingest"
	"callaudit-platform/internal/queue"
	"callaudit-platform/internal/reporting"
	"callaudit-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Ingest    *ingest.Service
	Calls     calls.Repository
	Reports   audit.ReportRepository
	Batch     *queue.Service
	Pipeline  ingest.Pipeline
	Reporting *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Ingest ---

// IngestWebhook accepts a call-completion event from the telephony side.
// Duplicate deliveries are acknowledged with the already-ingested call.
func (h Handlers) IngestWebhook(c *gin.Context) {
	var e ingest.CallEvent
	if err := c.ShouldBindJSON(&e); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	call, err := h.Ingest.Ingest(c.Request.Context(), e)
	switch {
	case errors.Is(err, ingest.ErrDuplicateEvent):
		c.JSON(http.StatusOK, gin.H{"call_id": call.ID, "status": call.Status, "duplicate": true})
	case errors.Is(err, ingest.ErrAgentNotMapped):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "agent not mapped"})
	case errors.Is(err, ingest.ErrInvalidEvent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingest failed"})
	default:
		c.JSON(http.StatusAccepted, gin.H{"call_id": call.ID, "status": call.Status})
	}
}

// --- Batch ---

type batchRequest struct {
	MaxSize int `json:"max_size"`
}

// RunBatch drains backlogged calls. Invoked by operators or a scheduler.
func (h Handlers) RunBatch(c *gin.Context) {
	var req batchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}

	res, err := h.Batch.ProcessBatch(c.Request.Context(), req.MaxSize)
	switch {
	case errors.Is(err, queue.ErrSweepInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "batch sweep already running"})
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "batch run failed"})
	default:
		c.JSON(http.StatusOK, res)
	}
}

// --- Calls ---

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Calls.GetByID(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h Handlers) GetReport(c *gin.Context) {
	rep, err := h.Reports.GetByCallID(c.Request.Context(), c.Param("call_id"))
	if err != nil {
		if errors.Is(err, audit.ErrReportNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report lookup failed"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// GetSummary aggregates pipeline throughput and audit quality over a time
// range. Defaults to the trailing seven days.
func (h Handlers) GetSummary(c *gin.Context) {
	req := reporting.SummaryRequest{CampaignID: c.Query("campaign_id")}

	now := time.Now().UTC()
	req.Range = reporting.TimeRange{From: now.AddDate(0, 0, -7), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		req.Range.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		req.Range.To = t
	}

	sum, err := h.Reporting.Summary(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid time range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// RetryCall re-queues a failed call at the stage its transcript allows:
// with a stored transcript it goes back to transcribed for re-audit,
// otherwise back to pending for re-transcription.
func (h Handlers) RetryCall(c *gin.Context) {
	ctx := c.Request.Context()
	callID := c.Param("call_id")

	call, err := h.Calls.GetByID(ctx, callID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}

	stage := calls.RetryStageFor(call)
	if stage == calls.RetryStageNone {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call is not in a retryable state", "status": call.Status})
		return
	}

	target := calls.StatusPending
	if stage == calls.RetryStageAudit {
		target = calls.StatusTranscribed
	}
	if err := h.Calls.ResetForRetry(ctx, callID, target); err != nil {
		if errors.Is(err, calls.ErrInvalidTransition) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call is not in a retryable state"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "retry failed"})
		return
	}

	if h.Pipeline != nil {
		bg := context.WithoutCancel(ctx)
		go func() {
			if err := h.Pipeline.ProcessCall(bg, callID); err != nil {
				logger.From(bg).Error("pipeline failed after retry", "call_id", callID, "err", err)
			}
		}()
	}
	c.JSON(http.StatusAccepted, gin.H{"call_id": callID, "retry_stage": stage})
}
