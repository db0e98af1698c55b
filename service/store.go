package service

import (
	"context"

	"scriptslap-server/models"
)

// Store is the persistence the services need. *models.Store implements it.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	EnsureProject(ctx context.Context, userID, topic, name string) (*models.Project, error)
	CreateSourceVideo(ctx context.Context, v *models.SourceVideo) error
	CreateStyleFingerprint(ctx context.Context, f *models.StyleFingerprint) error

	CreateScript(ctx context.Context, s *models.GeneratedScript) error
	GetScript(ctx context.Context, id string) (*models.GeneratedScript, error)
	ListScripts(ctx context.Context, userID string) ([]models.GeneratedScript, error)
	UpdateScriptStatus(ctx context.Context, id, status, errMsg string) error
	CompleteScript(ctx context.Context, id, body string) error
	FailStaleScript(ctx context.Context, id, errMsg string) (bool, error)
	DeleteScript(ctx context.Context, id string) error

	CreateRefinement(ctx context.Context, r *models.ScriptRefinement) error
	GetRefinement(ctx context.Context, id string) (*models.ScriptRefinement, error)
	ListRefinements(ctx context.Context, scriptID string) ([]models.ScriptRefinement, error)
	SetRefinementStatus(ctx context.Context, id, status, errMsg string) error
	SetRefinementOptions(ctx context.Context, id string, options []string) error
	ExpireRefinement(ctx context.Context, id string) (bool, error)
	ApplyRefinement(ctx context.Context, refinementID, option, scriptID, body string) (int, error)

	ListMetadata(ctx context.Context, userID string) (map[string]models.ScriptMetadata, error)
	GetMetadata(ctx context.Context, scriptID string) (*models.ScriptMetadata, error)
	UpsertMetadata(ctx context.Context, m *models.ScriptMetadata) error

	ReserveCredits(ctx context.Context, res *models.CreditReservation) error
	ConfirmReservation(ctx context.Context, id string) error
	ReleaseReservation(ctx context.Context, id string) error
	FindReservationByKey(ctx context.Context, userID, key string) (*models.CreditReservation, error)
}

var _ Store = (*models.Store)(nil)
