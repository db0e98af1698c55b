// Package servicetest provides in-memory fakes for the service layer.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"scriptslap-server/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory service.Store.
type MemoryStore struct {
	mu sync.Mutex

	// MetadataMissing makes the metadata calls behave as if the table was
	// never created.
	MetadataMissing bool

	clock        time.Time
	profiles     map[string]*models.Profile
	projects     map[string]*models.Project
	videos       map[string]*models.SourceVideo
	fingerprints map[string]*models.StyleFingerprint
	scripts      map[string]*models.GeneratedScript
	refinements  map[string]*models.ScriptRefinement
	metadata     map[string]*models.ScriptMetadata
	reservations map[string]*models.CreditReservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		profiles:     map[string]*models.Profile{},
		projects:     map[string]*models.Project{},
		videos:       map[string]*models.SourceVideo{},
		fingerprints: map[string]*models.StyleFingerprint{},
		scripts:      map[string]*models.GeneratedScript{},
		refinements:  map[string]*models.ScriptRefinement{},
		metadata:     map[string]*models.ScriptMetadata{},
		reservations: map[string]*models.CreditReservation{},
	}
}

// tick returns a strictly increasing timestamp so orderings are stable.
func (s *MemoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// AddProfile seeds a profile with the given balance.
func (s *MemoryStore) AddProfile(userID string, credits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	s.profiles[userID] = &models.Profile{ID: userID, SubscriptionTier: models.TierFree, Credits: credits, CreatedAt: now, UpdatedAt: now}
}

// Credits returns the current balance of userID, or -1 without a profile.
func (s *MemoryStore) Credits(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p.Credits
	}
	return -1
}

// Scripts returns copies of all scripts.
func (s *MemoryStore) Scripts() []models.GeneratedScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GeneratedScript, 0, len(s.scripts))
	for _, sc := range s.scripts {
		out = append(out, *sc)
	}
	return out
}

// Refinements returns copies of all refinements.
func (s *MemoryStore) Refinements() []models.ScriptRefinement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScriptRefinement, 0, len(s.refinements))
	for _, r := range s.refinements {
		out = append(out, *r)
	}
	return out
}

// Reservations returns copies of all credit reservations.
func (s *MemoryStore) Reservations() []models.CreditReservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CreditReservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, *r)
	}
	return out
}

// SourceVideos returns copies of all source videos.
func (s *MemoryStore) SourceVideos() []models.SourceVideo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SourceVideo, 0, len(s.videos))
	for _, v := range s.videos {
		out = append(out, *v)
	}
	return out
}

// Fingerprints returns copies of all style fingerprints.
func (s *MemoryStore) Fingerprints() []models.StyleFingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StyleFingerprint, 0, len(s.fingerprints))
	for _, f := range s.fingerprints {
		out = append(out, *f)
	}
	return out
}

func (s *MemoryStore) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, models.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) EnsureProject(_ context.Context, userID, topic, name string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.UserID == userID && p.Topic == topic {
			cp := *p
			return &cp, nil
		}
	}
	if name == "" {
		name = models.DefaultProjectName(topic)
	}
	p := &models.Project{ID: uuid.NewString(), UserID: userID, Name: name, Topic: topic, CreatedAt: s.tick()}
	s.projects[p.ID] = p
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) CreateSourceVideo(_ context.Context, v *models.SourceVideo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.CreatedAt = s.tick()
	cp := *v
	s.videos[v.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateStyleFingerprint(_ context.Context, f *models.StyleFingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.CreatedAt = s.tick()
	cp := *f
	s.fingerprints[f.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateScript(_ context.Context, sc *models.GeneratedScript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.Version == 0 {
		sc.Version = 1
	}
	now := s.tick()
	sc.CreatedAt, sc.UpdatedAt = now, now
	cp := *sc
	s.scripts[sc.ID] = &cp
	return nil
}

// PutScript stores sc as is, for tests that need a script in a given state.
func (s *MemoryStore) PutScript(sc models.GeneratedScript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.Version == 0 {
		sc.Version = 1
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = s.tick()
	}
	sc.UpdatedAt = s.tick()
	s.scripts[sc.ID] = &sc
}

func (s *MemoryStore) GetScript(_ context.Context, id string) (*models.GeneratedScript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scripts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s *MemoryStore) ListScripts(_ context.Context, userID string) ([]models.GeneratedScript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GeneratedScript
	for _, sc := range s.scripts {
		if sc.UserID == userID {
			out = append(out, *sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateScriptStatus(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scripts[id]
	if !ok {
		return models.ErrNotFound
	}
	sc.GenerationStatus = status
	sc.ErrorMessage = errMsg
	sc.UpdatedAt = s.tick()
	return nil
}

func (s *MemoryStore) CompleteScript(_ context.Context, id, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scripts[id]
	if !ok {
		return models.ErrNotFound
	}
	sc.GenerationStatus = models.ScriptStatusComplete
	sc.ScriptBodyMarkdown = body
	sc.ErrorMessage = ""
	sc.Version++
	sc.UpdatedAt = s.tick()
	return nil
}

func (s *MemoryStore) FailStaleScript(_ context.Context, id, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scripts[id]
	if !ok || sc.IsTerminal() {
		return false, nil
	}
	sc.GenerationStatus = models.ScriptStatusError
	sc.ErrorMessage = errMsg
	sc.UpdatedAt = s.tick()
	return true, nil
}

func (s *MemoryStore) DeleteScript(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scripts[id]; !ok {
		return models.ErrNotFound
	}
	for rid, r := range s.refinements {
		if r.ScriptID == id {
			delete(s.refinements, rid)
		}
	}
	delete(s.metadata, id)
	delete(s.scripts, id)
	return nil
}

func (s *MemoryStore) CreateRefinement(_ context.Context, r *models.ScriptRefinement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	r.CreatedAt, r.UpdatedAt = now, now
	cp := *r
	s.refinements[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRefinement(_ context.Context, id string) (*models.ScriptRefinement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refinements[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListRefinements(_ context.Context, scriptID string) ([]models.ScriptRefinement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScriptRefinement
	for _, r := range s.refinements {
		if r.ScriptID == scriptID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetRefinementStatus(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refinements[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Status = status
	r.ErrorMessage = errMsg
	r.UpdatedAt = s.tick()
	return nil
}

func (s *MemoryStore) SetRefinementOptions(_ context.Context, id string, options []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refinements[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Status = models.RefinementStatusReady
	r.GeneratedOptions = append(models.StringList{}, options...)
	r.ErrorMessage = ""
	r.UpdatedAt = s.tick()
	return nil
}

func (s *MemoryStore) ExpireRefinement(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.refinements[id]
	if !ok || r.Status != models.RefinementStatusPending {
		return false, nil
	}
	r.Status = models.RefinementStatusTimedOut
	r.UpdatedAt = s.tick()
	return true, nil
}

func (s *MemoryStore) ApplyRefinement(_ context.Context, refinementID, option, scriptID, body string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scripts[scriptID]
	if !ok {
		return 0, models.ErrNotFound
	}
	r, ok := s.refinements[refinementID]
	if !ok {
		return 0, models.ErrNotFound
	}
	if r.Status != models.RefinementStatusReady {
		return 0, models.ErrNotReady
	}
	now := s.tick()
	sc.ScriptBodyMarkdown = body
	sc.Version++
	sc.UpdatedAt = now
	r.Status = models.RefinementStatusApplied
	r.SelectedOption = option
	r.UpdatedAt = now
	return sc.Version, nil
}

func (s *MemoryStore) ListMetadata(_ context.Context, userID string) (map[string]models.ScriptMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MetadataMissing {
		return nil, models.ErrTableMissing
	}
	out := map[string]models.ScriptMetadata{}
	for id, m := range s.metadata {
		if m.UserID == userID {
			out[id] = *m
		}
	}
	return out, nil
}

func (s *MemoryStore) GetMetadata(_ context.Context, scriptID string) (*models.ScriptMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MetadataMissing {
		return nil, models.ErrTableMissing
	}
	m, ok := s.metadata[scriptID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *m
	cp.Tags = append(models.StringList{}, m.Tags...)
	return &cp, nil
}

func (s *MemoryStore) UpsertMetadata(_ context.Context, m *models.ScriptMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MetadataMissing {
		return models.ErrTableMissing
	}
	m.UpdatedAt = s.tick()
	cp := *m
	cp.Tags = append(models.StringList{}, m.Tags...)
	s.metadata[m.ScriptID] = &cp
	return nil
}

func (s *MemoryStore) ReserveCredits(_ context.Context, res *models.CreditReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[res.UserID]
	if !ok {
		return models.ErrProfileNotFound
	}
	if p.Credits < res.Cost {
		return &models.InsufficientCreditsError{Needed: res.Cost, Available: p.Credits}
	}
	if res.IdempotencyKey != nil {
		for _, other := range s.reservations {
			if other.UserID == res.UserID && other.IdempotencyKey != nil && *other.IdempotencyKey == *res.IdempotencyKey {
				return models.ErrDuplicate
			}
		}
	}
	p.Credits -= res.Cost
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	res.Status = models.ReservationReserved
	now := s.tick()
	res.CreatedAt, res.UpdatedAt = now, now
	cp := *res
	s.reservations[res.ID] = &cp
	return nil
}

func (s *MemoryStore) ConfirmReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reservations[id]; ok && r.Status == models.ReservationReserved {
		r.Status = models.ReservationConfirmed
		r.UpdatedAt = s.tick()
	}
	return nil
}

func (s *MemoryStore) ReleaseReservation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return models.ErrNotFound
	}
	if r.Status != models.ReservationReserved {
		return nil
	}
	if p, ok := s.profiles[r.UserID]; ok {
		p.Credits += r.Cost
	}
	r.Status = models.ReservationReleased
	r.IdempotencyKey = nil
	r.UpdatedAt = s.tick()
	return nil
}

func (s *MemoryStore) FindReservationByKey(_ context.Context, userID, key string) (*models.CreditReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reservations {
		if r.UserID == userID && r.IdempotencyKey != nil && *r.IdempotencyKey == key {
			cp := *r
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}
