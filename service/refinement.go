package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/models"
	"scriptslap-server/workflow"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefineResult is returned once a refinement workflow accepted a request.
type RefineResult struct {
	RefinementID string `json:"refinementId"`
	Message      string `json:"message"`
}

// RefinementService forwards refinement requests to the workflow engine.
type RefinementService struct {
	store      Store
	dispatcher workflow.Dispatcher
	watchdog   WatchdogScheduler
	guard      RequestGuard
	guardTTL   time.Duration
	ledger     ledger
	cost       int
	deadline   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewRefinementService builds the service. guardTTL bounds how long a
// request guard outlives a crashed request.
func NewRefinementService(store Store, dispatcher workflow.Dispatcher, watchdog WatchdogScheduler, guard RequestGuard, costs CreditCosts, deadline, guardTTL time.Duration, logger *zap.Logger) *RefinementService {
	logger = logger.Named("refinement")
	return &RefinementService{
		store:      store,
		dispatcher: dispatcher,
		watchdog:   watchdog,
		guard:      guard,
		guardTTL:   guardTTL,
		ledger:     ledger{store: store, logger: logger},
		cost:       costs.Refine,
		deadline:   deadline,
		logger:     logger,
		now:        time.Now,
	}
}

// Refine validates req, charges the refinement cost, records a pending
// refinement and triggers the workflow for its type.
func (s *RefinementService) Refine(ctx context.Context, p auth.Principal, req *workflow.RefineRequest, idempotencyKey string) (*RefineResult, error) {
	if err := req.Validate(); err != nil {
		return nil, newValidationError(err)
	}
	if err := validateIdempotencyKey(idempotencyKey); err != nil {
		return nil, err
	}
	if req.UserID != p.UserID {
		return nil, ErrUserMismatch
	}

	log := s.logger.With(
		zap.String("user_id", p.UserID),
		zap.String("script_id", req.ScriptID),
		zap.String("type", req.Type),
	)

	if refinementID, ok, err := s.ledger.replay(ctx, p.UserID, idempotencyKey); err != nil {
		return nil, err
	} else if ok {
		log.Info("replayed refinement request", zap.String("refinement_id", refinementID))
		return &RefineResult{RefinementID: refinementID, Message: "Content refinement started successfully"}, nil
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, guardKey(req), s.guardTTL)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	script, err := s.store.GetScript(ctx, req.ScriptID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("script %s: %w", req.ScriptID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get script: %w", err)
	}
	if script.UserID != p.UserID {
		return nil, fmt.Errorf("script %s: %w", req.ScriptID, models.ErrNotFound)
	}

	op, _ := workflow.OperationFor(req.Type)
	refinementID := uuid.NewString()
	res, err := s.ledger.reserve(ctx, p.UserID, string(op), s.cost, idempotencyKey, refinementID)
	if err != nil {
		return nil, err
	}

	refinement := &models.ScriptRefinement{
		ID:             refinementID,
		ScriptID:       req.ScriptID,
		UserID:         p.UserID,
		RefinementType: req.Type,
		Status:         models.RefinementStatusPending,
		Request: models.RefinementRequest{
			UserMessage:        req.UserMessage,
			OriginalText:       req.OriginalText,
			ParagraphPosition:  req.ParagraphPosition,
			SectionIndex:       req.SectionIndex,
			PrecedingParagraph: req.PrecedingParagraph,
			FollowingParagraph: req.FollowingParagraph,
		},
		GeneratedOptions: models.StringList{},
	}
	if err := s.store.CreateRefinement(ctx, refinement); err != nil {
		s.ledger.release(ctx, res)
		return nil, fmt.Errorf("create refinement: %w", err)
	}
	log = log.With(zap.String("refinement_id", refinementID))

	bg := context.WithoutCancel(ctx)
	if _, err := s.dispatcher.Dispatch(ctx, workflow.NewRefinePayload(refinementID, req, s.now())); err != nil {
		log.Error("refinement webhook failed", zap.Error(err))
		if uerr := s.store.SetRefinementStatus(bg, refinementID, models.RefinementStatusError, "Failed to trigger content refinement"); uerr != nil {
			log.Error("mark refinement error failed", zap.Error(uerr))
		}
		s.ledger.release(bg, res)
		return nil, &DispatchError{Message: "Failed to trigger content refinement", Err: err}
	}

	s.ledger.confirm(bg, res)
	if s.watchdog != nil {
		if err := s.watchdog.ScheduleRefinementWatchdog(bg, refinementID, s.deadline); err != nil {
			log.Warn("schedule refinement watchdog failed", zap.Error(err))
		}
	}

	log.Info("content refinement started")
	return &RefineResult{RefinementID: refinementID, Message: "Content refinement started successfully"}, nil
}

// guardKey identifies the refinement target: script, type and position.
func guardKey(req *workflow.RefineRequest) string {
	pos := "-"
	switch {
	case req.SectionIndex != nil:
		pos = "s" + strconv.Itoa(*req.SectionIndex)
	case req.ParagraphPosition != nil:
		pos = "p" + strconv.Itoa(*req.ParagraphPosition)
	}
	return "refine:" + req.ScriptID + ":" + req.Type + ":" + pos
}
