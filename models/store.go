package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the gorm backed persistence layer for every ScriptSlap entity.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		return nil, notFound(err, ErrProfileNotFound)
	}
	return &p, nil
}

// EnsureProject returns the user's project for topic, creating it on first use.
func (s *Store) EnsureProject(ctx context.Context, userID, topic, name string) (*Project, error) {
	var p Project
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND topic = ?", userID, topic).
		Order("created_at ASC").
		First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if name == "" {
		name = DefaultProjectName(topic)
	}
	p = Project{ID: uuid.NewString(), UserID: userID, Name: name, Topic: topic}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateSourceVideo(ctx context.Context, v *SourceVideo) error {
	return s.db.WithContext(ctx).Create(v).Error
}

func (s *Store) CreateStyleFingerprint(ctx context.Context, f *StyleFingerprint) error {
	return s.db.WithContext(ctx).Create(f).Error
}

func (s *Store) CreateScript(ctx context.Context, sc *GeneratedScript) error {
	if sc.Version == 0 {
		sc.Version = 1
	}
	return s.db.WithContext(ctx).Create(sc).Error
}

func (s *Store) GetScript(ctx context.Context, id string) (*GeneratedScript, error) {
	var sc GeneratedScript
	if err := s.db.WithContext(ctx).First(&sc, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return &sc, nil
}

func (s *Store) ListScripts(ctx context.Context, userID string) ([]GeneratedScript, error) {
	var list []GeneratedScript
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (s *Store) UpdateScriptStatus(ctx context.Context, id, status, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&GeneratedScript{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"generation_status": status,
			"error_message":     errMsg,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteScript stores the generated body and marks the script complete.
func (s *Store) CompleteScript(ctx context.Context, id, body string) error {
	res := s.db.WithContext(ctx).Model(&GeneratedScript{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"generation_status":    ScriptStatusComplete,
			"script_body_markdown": body,
			"error_message":        "",
			"version":              gorm.Expr("version + 1"),
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FailStaleScript marks the script as errored unless it already reached a
// terminal status. It reports whether a row changed.
func (s *Store) FailStaleScript(ctx context.Context, id, errMsg string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&GeneratedScript{}).
		Where("id = ? AND generation_status NOT IN ?", id, []string{ScriptStatusComplete, ScriptStatusError}).
		Updates(map[string]interface{}{
			"generation_status": ScriptStatusError,
			"error_message":     errMsg,
			"updated_at":        time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// DeleteScript removes the script with its refinements and metadata.
func (s *Store) DeleteScript(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("script_id = ?", id).Delete(&ScriptRefinement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("script_id = ?", id).Delete(&ScriptMetadata{}).Error; err != nil && !IsMissingTable(err) {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&GeneratedScript{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) CreateRefinement(ctx context.Context, r *ScriptRefinement) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Store) GetRefinement(ctx context.Context, id string) (*ScriptRefinement, error) {
	var r ScriptRefinement
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return &r, nil
}

func (s *Store) ListRefinements(ctx context.Context, scriptID string) ([]ScriptRefinement, error) {
	var list []ScriptRefinement
	err := s.db.WithContext(ctx).
		Where("script_id = ?", scriptID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (s *Store) SetRefinementStatus(ctx context.Context, id, status, errMsg string) error {
	res := s.db.WithContext(ctx).Model(&ScriptRefinement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errMsg,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRefinementOptions stores the options produced by the workflow engine.
func (s *Store) SetRefinementOptions(ctx context.Context, id string, options []string) error {
	res := s.db.WithContext(ctx).Model(&ScriptRefinement{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            RefinementStatusReady,
			"generated_options": StringList(options),
			"error_message":     "",
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireRefinement moves a refinement that is still pending to timed_out.
func (s *Store) ExpireRefinement(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&ScriptRefinement{}).
		Where("id = ? AND status = ?", id, RefinementStatusPending).
		Updates(map[string]interface{}{
			"status":     RefinementStatusTimedOut,
			"updated_at": time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// ApplyRefinement writes the new script body and marks the refinement
// applied in one transaction. It returns the new script version, or
// ErrNotReady when the refinement is no longer ready.
func (s *Store) ApplyRefinement(ctx context.Context, refinementID, option, scriptID, body string) (int, error) {
	var version int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sc GeneratedScript
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sc, "id = ?", scriptID).Error; err != nil {
			return notFound(err, ErrNotFound)
		}
		now := time.Now()
		res := tx.Model(&ScriptRefinement{}).
			Where("id = ? AND status = ?", refinementID, RefinementStatusReady).
			Updates(map[string]interface{}{
				"status":          RefinementStatusApplied,
				"selected_option": option,
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotReady
		}
		version = sc.Version + 1
		return tx.Model(&GeneratedScript{}).Where("id = ?", scriptID).Updates(map[string]interface{}{
			"script_body_markdown": body,
			"version":              version,
			"updated_at":           now,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// ListMetadata returns the user's metadata rows keyed by script id.
func (s *Store) ListMetadata(ctx context.Context, userID string) (map[string]ScriptMetadata, error) {
	var rows []ScriptMetadata
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		if IsMissingTable(err) {
			return nil, fmt.Errorf("list metadata: %w", ErrTableMissing)
		}
		return nil, err
	}
	out := make(map[string]ScriptMetadata, len(rows))
	for _, m := range rows {
		out[m.ScriptID] = m
	}
	return out, nil
}

func (s *Store) GetMetadata(ctx context.Context, scriptID string) (*ScriptMetadata, error) {
	var m ScriptMetadata
	if err := s.db.WithContext(ctx).First(&m, "script_id = ?", scriptID).Error; err != nil {
		if IsMissingTable(err) {
			return nil, fmt.Errorf("get metadata: %w", ErrTableMissing)
		}
		return nil, notFound(err, ErrNotFound)
	}
	return &m, nil
}

func (s *Store) UpsertMetadata(ctx context.Context, m *ScriptMetadata) error {
	m.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "script_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_favorite", "tags", "category", "updated_at"}),
	}).Create(m).Error
	if IsMissingTable(err) {
		return fmt.Errorf("upsert metadata: %w", ErrTableMissing)
	}
	return err
}

// ReserveCredits takes res.Cost credits from the user's profile and records
// the reservation. The profile row is locked for the duration.
func (s *Store) ReserveCredits(ctx context.Context, res *CreditReservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Profile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", res.UserID).Error; err != nil {
			return notFound(err, ErrProfileNotFound)
		}
		if p.Credits < res.Cost {
			return &InsufficientCreditsError{Needed: res.Cost, Available: p.Credits}
		}
		if err := tx.Model(&Profile{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"credits":    gorm.Expr("credits - ?", res.Cost),
			"updated_at": time.Now(),
		}).Error; err != nil {
			return err
		}
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		res.Status = ReservationReserved
		if err := tx.Create(res).Error; err != nil {
			if isDuplicateEntry(err) {
				return ErrDuplicate
			}
			return err
		}
		return nil
	})
}

func (s *Store) ConfirmReservation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&CreditReservation{}).
		Where("id = ? AND status = ?", id, ReservationReserved).
		Updates(map[string]interface{}{
			"status":     ReservationConfirmed,
			"updated_at": time.Now(),
		}).Error
}

// ReleaseReservation refunds a reserved amount and frees its idempotency key.
// Releasing twice is a no-op.
func (s *Store) ReleaseReservation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res CreditReservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&res, "id = ?", id).Error; err != nil {
			return notFound(err, ErrNotFound)
		}
		if res.Status != ReservationReserved {
			return nil
		}
		if err := tx.Model(&Profile{}).Where("id = ?", res.UserID).
			Update("credits", gorm.Expr("credits + ?", res.Cost)).Error; err != nil {
			return err
		}
		return tx.Model(&CreditReservation{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":          ReservationReleased,
			"idempotency_key": nil,
			"updated_at":      time.Now(),
		}).Error
	})
}

func (s *Store) FindReservationByKey(ctx context.Context, userID, key string) (*CreditReservation, error) {
	var res CreditReservation
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&res).Error
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return &res, nil
}
