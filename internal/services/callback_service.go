package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"docharvest/internal/backoff"
	"docharvest/internal/metrics"
	"docharvest/internal/ratelimit"
	"docharvest/internal/tracing"
	"docharvest/pkg/domain"
)

// CallbackService delivers the terminal extraction result to the webhook URL
// named in the request. Delivery is asynchronous and never blocks or fails
// the HTTP response.
type CallbackService interface {
	Send(ctx context.Context, webhookURL string, targetURL string, result domain.ExtractionResult)
}

type callbackService struct {
	logger        *slog.Logger
	secret        string
	maxAttempts   int
	backoffPolicy string
	baseDelay     time.Duration
	maxDelay      time.Duration

	limiter ratelimit.Limiter
	bucket  ratelimit.Bucket

	httpClient *http.Client
}

func NewCallbackService(logger *slog.Logger, secret string, maxAttempts int, policy string, baseDelaySeconds int, maxDelaySeconds int, limiter ratelimit.Limiter, bucket ratelimit.Bucket) CallbackService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if baseDelaySeconds <= 0 {
		baseDelaySeconds = 2
	}
	if maxDelaySeconds <= 0 {
		maxDelaySeconds = 60
	}
	return &callbackService{
		logger:        logger,
		secret:        secret,
		maxAttempts:   maxAttempts,
		backoffPolicy: policy,
		baseDelay:     time.Duration(baseDelaySeconds) * time.Second,
		maxDelay:      time.Duration(maxDelaySeconds) * time.Second,
		limiter:       limiter,
		bucket:        bucket,
		httpClient:    http.DefaultClient,
	}
}

func (s *callbackService) Send(ctx context.Context, webhookURL string, targetURL string, result domain.ExtractionResult) {
	if strings.TrimSpace(webhookURL) == "" {
		return
	}
	payload := map[string]any{
		"url":            targetURL,
		"status":         result.Status,
		"message":        result.Message,
		"files_uploaded": result.UploadedCount,
		"s3_uris":        result.UploadedURIs,
		"completedAt":    time.Now().UTC(),
	}
	if len(result.FailedFiles) > 0 {
		payload["failed_files"] = result.FailedFiles
	}

	b, _ := json.Marshal(payload)
	go s.sendWithRetry(ctx, webhookURL, b)
}

func (s *callbackService) sendWithRetry(ctx context.Context, url string, body []byte) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if s.limiter != nil && s.bucket.Enabled() {
			for {
				dec, err := s.limiter.Allow(ctx, "webhook", url, s.bucket)
				if err != nil {
					// Fail open.
					break
				}
				if dec.Allowed {
					break
				}
				metrics.RateLimitHitsTotal.WithLabelValues("webhook", "extraction_result").Inc()
				if sleepOrDone(ctx, dec.RetryAfter) != nil {
					return
				}
			}
		}

		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		s.addSignature(req, body)
		tracing.InjectHeaders(ctx, req.Header)
		resp, err := s.httpClient.Do(req)
		if err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		if sleepOrDone(ctx, backoff.Delay(s.backoffPolicy, s.baseDelay, s.maxDelay, attempt, nil)) != nil {
			return
		}
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	s.logger.Warn("completion webhook delivery failed", "url", url)
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *callbackService) addSignature(req *http.Request, body []byte) {
	if strings.TrimSpace(s.secret) == "" {
		return
	}
	ts := time.Now().UTC().Unix()
	mac := hmac.New(sha256.New, []byte(s.secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.", ts)))
	_, _ = mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))
	req.Header.Set("X-Docharvest-Timestamp", fmt.Sprintf("%d", ts))
	req.Header.Set("X-Docharvest-Signature", sig)
}
