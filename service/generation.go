package service

import (
	"context"
	"fmt"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/models"
	"scriptslap-server/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const generateOperation = "generate"

// GenerateResult is returned once the generation workflow accepted a script.
type GenerateResult struct {
	ScriptID string `json:"scriptId"`
	Message  string `json:"message"`
}

// GenerationService forwards script generation requests to the workflow engine.
type GenerationService struct {
	store      Store
	dispatcher workflow.Dispatcher
	watchdog   WatchdogScheduler
	ledger     ledger
	cost       int
	deadline   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewGenerationService(store Store, dispatcher workflow.Dispatcher, watchdog WatchdogScheduler, costs CreditCosts, deadline time.Duration, logger *zap.Logger) *GenerationService {
	logger = logger.Named("generation")
	return &GenerationService{
		store:      store,
		dispatcher: dispatcher,
		watchdog:   watchdog,
		ledger:     ledger{store: store, logger: logger},
		cost:       costs.Generate,
		deadline:   deadline,
		logger:     logger,
		now:        time.Now,
	}
}

// Generate validates req, charges the generation cost, writes the placeholder
// rows and triggers the generation workflow.
func (s *GenerationService) Generate(ctx context.Context, p auth.Principal, req *workflow.GenerateRequest, idempotencyKey string) (*GenerateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, newValidationError(err)
	}
	if err := validateIdempotencyKey(idempotencyKey); err != nil {
		return nil, err
	}
	if req.UserID != p.UserID {
		return nil, ErrUserMismatch
	}

	log := s.logger.With(zap.String("user_id", p.UserID), zap.String("topic", req.Topic))

	if scriptID, ok, err := s.ledger.replay(ctx, p.UserID, idempotencyKey); err != nil {
		return nil, err
	} else if ok {
		log.Info("replayed generation request", zap.String("script_id", scriptID))
		return &GenerateResult{ScriptID: scriptID, Message: "Script generation started successfully"}, nil
	}

	scriptID := uuid.NewString()
	res, err := s.ledger.reserve(ctx, p.UserID, generateOperation, s.cost, idempotencyKey, scriptID)
	if err != nil {
		return nil, err
	}

	script, err := s.createPlaceholders(ctx, scriptID, req)
	if err != nil {
		s.ledger.release(ctx, res)
		return nil, err
	}
	log = log.With(zap.String("script_id", script.ID))

	bg := context.WithoutCancel(ctx)
	if err := s.store.UpdateScriptStatus(ctx, script.ID, models.ScriptStatusAnalyzingStyle, ""); err != nil {
		log.Warn("update status to analyzing_style failed", zap.Error(err))
	}

	if _, err := s.dispatcher.Dispatch(ctx, workflow.NewGeneratePayload(script.ID, req, s.now())); err != nil {
		log.Error("generation webhook failed", zap.Error(err))
		if uerr := s.store.UpdateScriptStatus(bg, script.ID, models.ScriptStatusError, "Failed to trigger script generation"); uerr != nil {
			log.Error("mark script error failed", zap.Error(uerr))
		}
		s.ledger.release(bg, res)
		return nil, &DispatchError{Message: "Failed to trigger script generation via webhook", Err: err}
	}

	if err := s.store.UpdateScriptStatus(bg, script.ID, models.ScriptStatusGeneratingScript, ""); err != nil {
		log.Warn("update status to generating_script failed", zap.Error(err))
	}
	s.ledger.confirm(bg, res)

	if s.watchdog != nil {
		if err := s.watchdog.ScheduleScriptWatchdog(bg, script.ID, s.deadline); err != nil {
			log.Warn("schedule script watchdog failed", zap.Error(err))
		}
	}

	log.Info("script generation started")
	return &GenerateResult{ScriptID: script.ID, Message: "Script generation started successfully"}, nil
}

func (s *GenerationService) createPlaceholders(ctx context.Context, scriptID string, req *workflow.GenerateRequest) (*models.GeneratedScript, error) {
	project, err := s.store.EnsureProject(ctx, req.UserID, req.Topic, req.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("ensure project: %w", err)
	}

	var fingerprintID *string
	if req.YoutubeURL != "" {
		video := &models.SourceVideo{
			ID:             uuid.NewString(),
			ProjectID:      &project.ID,
			UserID:         req.UserID,
			YoutubeURL:     req.YoutubeURL,
			AnalysisStatus: models.AnalysisStatusPending,
		}
		if err := s.store.CreateSourceVideo(ctx, video); err != nil {
			return nil, fmt.Errorf("create source video: %w", err)
		}
		fp := &models.StyleFingerprint{
			ID:              uuid.NewString(),
			SourceVideoID:   &video.ID,
			UserID:          req.UserID,
			FingerprintName: models.FingerprintName(req.YoutubeURL),
		}
		if err := s.store.CreateStyleFingerprint(ctx, fp); err != nil {
			return nil, fmt.Errorf("create style fingerprint: %w", err)
		}
		fingerprintID = &fp.ID
	}

	script := &models.GeneratedScript{
		ID:                 scriptID,
		ProjectID:          &project.ID,
		UserID:             req.UserID,
		StyleFingerprintID: fingerprintID,
		ScriptTitle:        models.ScriptTitle(req.Topic, req.Language, req.VideoLength),
		Topic:              req.Topic,
		Language:           req.Language,
		VideoLength:        req.VideoLength,
		GenerationStatus:   models.ScriptStatusPending,
		Version:            1,
	}
	if err := s.store.CreateScript(ctx, script); err != nil {
		return nil, fmt.Errorf("create script: %w", err)
	}
	return script, nil
}
