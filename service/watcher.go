package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scriptslap-server/auth"
	"scriptslap-server/models"

	"go.uber.org/zap"
)

const (
	EventScript     = "script"
	EventRefinement = "refinement"
	EventDeleted    = "deleted"
)

// Event is one change pushed to a subscribed editor.
type Event struct {
	Type       string                   `json:"type"`
	ScriptID   string                   `json:"script_id"`
	Script     *ScriptView              `json:"script,omitempty"`
	Refinement *models.ScriptRefinement `json:"refinement,omitempty"`
}

// Watcher turns store polling into a change feed keyed by script id. The
// latest stored state always wins; there is no conflict detection.
type Watcher struct {
	store    Store
	interval time.Duration
	logger   *zap.Logger
}

func NewWatcher(store Store, interval time.Duration, logger *zap.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{store: store, interval: interval, logger: logger.Named("watcher")}
}

// Authorize loads the script a caller wants to subscribe to.
func (w *Watcher) Authorize(ctx context.Context, p auth.Principal, scriptID string) (*models.GeneratedScript, error) {
	return ownedScript(ctx, w.store, p, scriptID)
}

// Watch emits a snapshot of script and then every change until ctx is done,
// emit fails or the script is deleted.
func (w *Watcher) Watch(ctx context.Context, script *models.GeneratedScript, emit func(Event) error) error {
	scriptID := script.ID
	if err := emit(Event{Type: EventScript, ScriptID: scriptID, Script: BuildScriptView(script)}); err != nil {
		return err
	}

	seen := map[string]string{}
	if refs, err := w.store.ListRefinements(ctx, scriptID); err == nil {
		for i := range refs {
			seen[refs[i].ID] = refinementSignature(&refs[i])
		}
	}
	prev := scriptSignature(script)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		cur, err := w.store.GetScript(ctx, scriptID)
		if errors.Is(err, models.ErrNotFound) {
			_ = emit(Event{Type: EventDeleted, ScriptID: scriptID})
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("poll script failed", zap.String("script_id", scriptID), zap.Error(err))
			continue
		}
		if sig := scriptSignature(cur); sig != prev {
			if err := emit(Event{Type: EventScript, ScriptID: scriptID, Script: BuildScriptView(cur)}); err != nil {
				return err
			}
			prev = sig
		}

		refs, err := w.store.ListRefinements(ctx, scriptID)
		if err != nil {
			w.logger.Warn("poll refinements failed", zap.String("script_id", scriptID), zap.Error(err))
			continue
		}
		for i := range refs {
			r := &refs[i]
			sig := refinementSignature(r)
			if seen[r.ID] == sig {
				continue
			}
			if err := emit(Event{Type: EventRefinement, ScriptID: scriptID, Refinement: r}); err != nil {
				return err
			}
			seen[r.ID] = sig
		}
	}
}

func scriptSignature(s *models.GeneratedScript) string {
	return fmt.Sprintf("%s|%d|%d|%s|%d", s.GenerationStatus, s.Version, len(s.ScriptBodyMarkdown), s.ErrorMessage, s.UpdatedAt.UnixNano())
}

func refinementSignature(r *models.ScriptRefinement) string {
	return fmt.Sprintf("%s|%d|%s|%s|%d", r.Status, len(r.GeneratedOptions), r.SelectedOption, r.ErrorMessage, r.UpdatedAt.UnixNano())
}
