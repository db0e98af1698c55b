package service

import (
	"context"
	"encoding/json"
	"fmt"

	"scriptslap-server/metrics"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Processor handles watchdog tasks.
type Processor struct {
	store  Store
	logger *zap.Logger
}

func NewProcessor(store Store, logger *zap.Logger) *Processor {
	return &Processor{store: store, logger: logger.Named("processor")}
}

// Mux registers the task handlers.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeScriptWatchdog, p.HandleScriptWatchdog)
	mux.HandleFunc(TypeRefinementWatchdog, p.HandleRefinementWatchdog)
	return mux
}

// NewServer builds the asynq server that runs the processor.
func NewServer(redisOpt asynq.RedisConnOpt, concurrency int, logger *zap.Logger) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: logger.Named("asynq").Sugar(),
	})
}

// HandleScriptWatchdog fails a generation that is still running at its deadline.
func (p *Processor) HandleScriptWatchdog(ctx context.Context, t *asynq.Task) error {
	var payload WatchdogPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	changed, err := p.store.FailStaleScript(ctx, payload.ID, "generation timed out")
	if err != nil {
		return fmt.Errorf("fail stale script %s: %w", payload.ID, err)
	}
	if changed {
		metrics.WatchdogExpired.WithLabelValues("script").Inc()
		p.logger.Warn("generation timed out", zap.String("script_id", payload.ID))
	}
	return nil
}

// HandleRefinementWatchdog times out a refinement that never got options.
func (p *Processor) HandleRefinementWatchdog(ctx context.Context, t *asynq.Task) error {
	var payload WatchdogPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	changed, err := p.store.ExpireRefinement(ctx, payload.ID)
	if err != nil {
		return fmt.Errorf("expire refinement %s: %w", payload.ID, err)
	}
	if changed {
		metrics.WatchdogExpired.WithLabelValues("refinement").Inc()
		p.logger.Warn("refinement timed out", zap.String("refinement_id", payload.ID))
	}
	return nil
}
