package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"scriptslap-server/models"
	"scriptslap-server/scriptbody"

	"go.uber.org/zap"
)

// ScriptCallback is what the generation workflow reports for a script.
type ScriptCallback struct {
	Status             string `json:"status"`
	ScriptBodyMarkdown string `json:"script_body_markdown"`
	ErrorMessage       string `json:"error_message"`
}

// RefinementCallback is what a refinement workflow reports. A non-empty
// ErrorMessage marks the refinement as failed.
type RefinementCallback struct {
	Options      []string `json:"options"`
	ErrorMessage string   `json:"error_message"`
}

// CallbackService lets workflows write their results through the server.
type CallbackService struct {
	store  Store
	secret string
	logger *zap.Logger
}

func NewCallbackService(store Store, secret string, logger *zap.Logger) *CallbackService {
	return &CallbackService{store: store, secret: secret, logger: logger.Named("callbacks")}
}

// Authorize checks the shared workflow secret. Callbacks are refused when no
// secret is configured.
func (s *CallbackService) Authorize(secret string) error {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) != 1 {
		return ErrCallbackForbidden
	}
	return nil
}

func (s *CallbackService) ScriptResult(ctx context.Context, scriptID string, cb ScriptCallback) error {
	if _, err := s.store.GetScript(ctx, scriptID); err != nil {
		return fmt.Errorf("script %s: %w", scriptID, err)
	}

	switch cb.Status {
	case models.ScriptStatusComplete:
		if _, err := scriptbody.DecodeBody(cb.ScriptBodyMarkdown); err != nil {
			return &ValidationError{Message: "Invalid script body: " + err.Error(), Fields: []string{"script_body_markdown"}}
		}
		if err := s.store.CompleteScript(ctx, scriptID, cb.ScriptBodyMarkdown); err != nil {
			return err
		}
	case models.ScriptStatusError:
		msg := strings.TrimSpace(cb.ErrorMessage)
		if msg == "" {
			msg = "Script generation failed"
		}
		if err := s.store.UpdateScriptStatus(ctx, scriptID, models.ScriptStatusError, msg); err != nil {
			return err
		}
	case models.ScriptStatusAnalyzingStyle, models.ScriptStatusGeneratingScript:
		if err := s.store.UpdateScriptStatus(ctx, scriptID, cb.Status, ""); err != nil {
			return err
		}
	default:
		return &ValidationError{Message: "Invalid status", Fields: []string{"status"}}
	}

	s.logger.Info("script result received", zap.String("script_id", scriptID), zap.String("status", cb.Status))
	return nil
}

func (s *CallbackService) RefinementResult(ctx context.Context, refinementID string, cb RefinementCallback) error {
	ref, err := s.store.GetRefinement(ctx, refinementID)
	if err != nil {
		return fmt.Errorf("refinement %s: %w", refinementID, err)
	}
	if ref.Status != models.RefinementStatusPending && ref.Status != models.RefinementStatusTimedOut {
		return fmt.Errorf("refinement %s is %s: %w", ref.ID, ref.Status, ErrRefinementClosed)
	}

	if msg := strings.TrimSpace(cb.ErrorMessage); msg != "" {
		return s.store.SetRefinementStatus(ctx, refinementID, models.RefinementStatusError, msg)
	}

	var options []string
	for _, o := range cb.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	if len(options) == 0 {
		return &ValidationError{Message: "Missing required fields", Fields: []string{"options"}}
	}
	if err := s.store.SetRefinementOptions(ctx, refinementID, options); err != nil {
		return err
	}
	s.logger.Info("refinement options received", zap.String("refinement_id", refinementID), zap.Int("options", len(options)))
	return nil
}
