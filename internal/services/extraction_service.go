package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docharvest/internal/agent"
	"docharvest/internal/metrics"
	"docharvest/internal/providers"
	"docharvest/internal/workspace"
	"docharvest/pkg/domain"
)

// ExtractionService runs the full pipeline for one request: allocate a scratch
// directory, run the external agent against the target URL, enumerate whatever
// landed on disk, upload each file, and clean up. Cleanup runs on every
// terminal outcome, including agent timeouts with partial downloads.
type ExtractionService interface {
	Extract(ctx context.Context, req domain.ExtractionRequest) (*domain.ExtractionResult, error)
}

type extractionService struct {
	workspaces   *workspace.Manager
	runner       agent.Runner
	uploader     providers.Uploader
	callback     CallbackService
	logger       *slog.Logger
	agentTimeout time.Duration
}

func NewExtractionService(workspaces *workspace.Manager, runner agent.Runner, uploader providers.Uploader, callback CallbackService, logger *slog.Logger, agentTimeout time.Duration) ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	if agentTimeout <= 0 {
		agentTimeout = 120 * time.Second
	}
	return &extractionService{
		workspaces:   workspaces,
		runner:       runner,
		uploader:     uploader,
		callback:     callback,
		logger:       logger,
		agentTimeout: agentTimeout,
	}
}

func (s *extractionService) Extract(ctx context.Context, req domain.ExtractionRequest) (result *domain.ExtractionResult, err error) {
	ctx, span := otel.Tracer("docharvest/extract").Start(ctx, "docharvest.extract",
		trace.WithAttributes(
			attribute.String("docharvest.target_url", req.TargetURL),
			attribute.String("docharvest.bucket", req.Bucket),
			attribute.String("docharvest.prefix", req.KeyPrefix),
		),
	)
	defer span.End()

	start := time.Now()
	var failedDetail *domain.ExtractionResult
	defer func() {
		status := domain.StatusFailed
		if result != nil {
			status = result.Status
		}
		metrics.ExtractionsTotal.WithLabelValues(string(status)).Inc()
		metrics.ExtractionDurationSeconds.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		// Webhook subscribers hear about every terminal outcome, failures
		// included.
		notify := result
		if notify == nil && err != nil {
			notify = failedDetail
			if notify == nil {
				notify = &domain.ExtractionResult{
					Status:       domain.StatusFailed,
					Message:      err.Error(),
					UploadedURIs: []string{},
				}
			}
		}
		if notify != nil && s.callback != nil {
			s.callback.Send(context.WithoutCancel(ctx), req.Webhook, req.TargetURL, *notify)
		}
	}()

	ws, err := s.workspaces.Acquire()
	if err != nil {
		return nil, err
	}
	defer ws.Release()

	if err := ws.Reset(); err != nil {
		return nil, err
	}

	if err := s.runAgent(ctx, req.TargetURL, ws.Dir()); err != nil {
		return nil, err
	}

	artifacts, err := ws.ListArtifacts()
	if err != nil {
		return nil, err
	}
	metrics.ArtifactsDiscoveredTotal.Add(float64(len(artifacts)))
	span.SetAttributes(attribute.Int("docharvest.artifacts", len(artifacts)))

	if len(artifacts) == 0 {
		s.logger.Info("extraction produced no artifacts", "url", req.TargetURL)
		return &domain.ExtractionResult{
			Status:       domain.StatusNoArtifacts,
			Message:      "extraction completed but no documents were found",
			UploadedURIs: []string{},
		}, nil
	}

	if err := s.uploader.ValidateBucket(ctx, req.Bucket); err != nil {
		return nil, err
	}

	outcomes := providers.UploadAll(ctx, s.uploader, artifacts, req.Bucket, req.KeyPrefix)
	result = s.reconcile(ws, req, outcomes)
	if result.Status == domain.StatusFailed {
		failedDetail = result
		result = nil
		return nil, domain.NewError(domain.KindObjectWrite, fmt.Sprintf("all %d uploads failed", len(outcomes)))
	}
	s.logger.Info("extraction finished",
		"url", req.TargetURL,
		"status", string(result.Status),
		"uploaded", result.UploadedCount,
		"failed", len(result.FailedFiles),
	)
	return result, nil
}

func (s *extractionService) runAgent(ctx context.Context, targetURL string, dir string) error {
	runCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	runStart := time.Now()
	err := s.runner.Run(runCtx, targetURL, dir)
	metrics.AgentRunDurationSeconds.Observe(time.Since(runStart).Seconds())
	if err == nil {
		return nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return domain.WrapError(domain.KindAgentFailure,
			fmt.Sprintf("agent run exceeded %s budget", s.agentTimeout), err)
	}
	if domain.KindOf(err) == domain.KindAgentFailure {
		return err
	}
	return domain.WrapError(domain.KindAgentFailure, "agent run failed", err)
}

// reconcile turns per-artifact outcomes into the terminal result and deletes
// uploaded files. URIs keep discovery order, not upload completion order.
func (s *extractionService) reconcile(ws *workspace.Workspace, req domain.ExtractionRequest, outcomes []domain.UploadOutcome) *domain.ExtractionResult {
	var uris []string
	var failed []domain.FailedFile
	for _, o := range outcomes {
		if o.Uploaded() {
			uris = append(uris, o.ObjectURI)
			metrics.ArtifactUploadsTotal.WithLabelValues("success").Inc()
			ws.Remove(o.Artifact)
			continue
		}
		metrics.ArtifactUploadsTotal.WithLabelValues("failure").Inc()
		failed = append(failed, domain.FailedFile{
			File:  filepath.Base(o.Artifact.LocalPath),
			Error: o.Err.Error(),
		})
	}
	if uris == nil {
		uris = []string{}
	}

	res := &domain.ExtractionResult{
		UploadedURIs:  uris,
		UploadedCount: len(uris),
		FailedFiles:   failed,
	}
	switch {
	case len(failed) == 0:
		res.Status = domain.StatusSuccess
		res.Message = fmt.Sprintf("successfully extracted and uploaded %d file(s)", len(uris))
	case len(uris) > 0:
		res.Status = domain.StatusPartialFailure
		res.Message = fmt.Sprintf("uploaded %d of %d file(s); %d failed", len(uris), len(outcomes), len(failed))
	default:
		res.Status = domain.StatusFailed
		res.Message = fmt.Sprintf("all %d uploads failed", len(outcomes))
	}
	return res
}
