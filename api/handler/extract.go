package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/specgrab/cache"
	"github.com/use-agent/specgrab/config"
	"github.com/use-agent/specgrab/models"
	"github.com/use-agent/specgrab/webhook"
)

// Extractor is the pipeline the handler drives.
type Extractor interface {
	TargetURL(identifier string) (string, error)
	Extract(ctx context.Context, req *models.ExtractionRequest) (*models.ExtractionResult, error)
}

// ExtractDeps bundles what the extract handler needs. Cache may be nil and
// an empty Webhook.URL disables delivery.
type ExtractDeps struct {
	Extractor Extractor
	Gate      *Gate
	Cache     *cache.Cache
	FetchMode string
	Webhook   config.WebhookConfig
}

// Extract returns a handler for POST /api/v1/extract.
//
//  1. Parse and validate the request.
//  2. Serve from cache when max_age allows.
//  3. Take the gate or answer BUSY.
//  4. Run the pipeline, cache and deliver a successful result.
func Extract(d ExtractDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ExtractionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		target, err := d.Extractor.TargetURL(req.Identifier)
		if err != nil {
			respondError(c, err, nil, start)
			return
		}

		key := cache.Key(target, d.FetchMode)
		if d.Cache != nil && req.MaxAge > 0 {
			if cached, hit := d.Cache.Get(key, req.MaxAge); hit {
				c.JSON(http.StatusOK, models.ExtractResponse{
					ExtractionResult: cached,
					Timing:           timing(start),
					CacheStatus:      "hit",
				})
				return
			}
		}

		if !d.Gate.TryAcquire() {
			respondError(c, models.NewScrapeError(models.ErrCodeBusy, "an extraction is already running", nil), nil, start)
			return
		}
		res, err := func() (*models.ExtractionResult, error) {
			defer d.Gate.Release()
			return d.Extractor.Extract(c.Request.Context(), &req)
		}()
		if err != nil {
			respondError(c, err, res, start)
			return
		}

		resp := models.ExtractResponse{ExtractionResult: res, Timing: timing(start)}
		if d.Cache != nil && req.MaxAge > 0 {
			d.Cache.Set(key, res)
			resp.CacheStatus = "miss"
		}
		if d.Webhook.URL != "" {
			webhook.DeliverAsync(d.Webhook.URL, d.Webhook.Secret,
				webhook.NewEvent(webhook.EventExtractionCompleted, req.Identifier, res))
		}

		c.JSON(http.StatusOK, resp)
	}
}

func timing(start time.Time) models.TimingInfo {
	return models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
}

// respondError maps a ScrapeError to its HTTP status and writes the
// structured error response. res is the pipeline's failure result, if any.
func respondError(c *gin.Context, err error, res *models.ExtractionResult, start time.Time) {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		se = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	status := mapErrorToStatus(se)
	if status >= http.StatusInternalServerError {
		slog.Error("extract request failed", "code", se.Code, "error", err)
	}

	if res == nil {
		res = &models.ExtractionResult{Specifications: models.SpecificationMap{}}
	}
	res.Success = false
	res.Error = se.ToDetail()

	c.JSON(status, models.ExtractResponse{ExtractionResult: res, Timing: timing(start)})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeLaunch, models.ErrCodeBusy:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
