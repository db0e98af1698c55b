package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"scriptslap-server/auth"
	"scriptslap-server/models"

	"go.uber.org/zap"
)

const (
	SortDate   = "date"
	SortTitle  = "title"
	SortStatus = "status"
)

// HistoryFilter narrows and orders the history list.
type HistoryFilter struct {
	Query         string
	Status        string
	FavoritesOnly bool
	Sort          string
}

// HistoryItem is a script merged with its metadata.
type HistoryItem struct {
	models.GeneratedScript
	StatusLabel string            `json:"status_label"`
	IsFavorite  bool              `json:"is_favorite"`
	Tags        models.StringList `json:"tags"`
	Category    string            `json:"category"`
}

// HistoryList is the history page. MetadataAvailable is false when the
// metadata table is not deployed; every item then carries default metadata.
type HistoryList struct {
	Items             []HistoryItem `json:"scripts"`
	MetadataAvailable bool          `json:"metadata_available"`
}

// MetadataUpdate changes the fields that are set.
type MetadataUpdate struct {
	IsFavorite *bool    `json:"is_favorite"`
	Tags       []string `json:"tags"`
	Category   *string  `json:"category"`
}

// HistoryService backs the script history page and the profile endpoint.
type HistoryService struct {
	store  Store
	logger *zap.Logger
}

func NewHistoryService(store Store, logger *zap.Logger) *HistoryService {
	return &HistoryService{store: store, logger: logger.Named("history")}
}

func (s *HistoryService) Profile(ctx context.Context, p auth.Principal) (*models.Profile, error) {
	return s.store.GetProfile(ctx, p.UserID)
}

func (s *HistoryService) List(ctx context.Context, p auth.Principal, f HistoryFilter) (*HistoryList, error) {
	scripts, err := s.store.ListScripts(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}

	list := &HistoryList{MetadataAvailable: true, Items: make([]HistoryItem, 0, len(scripts))}
	meta, err := s.store.ListMetadata(ctx, p.UserID)
	if err != nil {
		if !models.IsMissingTable(err) {
			return nil, fmt.Errorf("list metadata: %w", err)
		}
		s.logger.Debug("metadata table missing, using defaults")
		list.MetadataAvailable = false
		meta = nil
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	for _, sc := range scripts {
		m, ok := meta[sc.ID]
		if !ok {
			m = models.DefaultMetadata(sc.ID, sc.UserID)
		}
		if m.Category == "" {
			m.Category = models.DefaultCategory
		}
		if m.Tags == nil {
			m.Tags = models.StringList{}
		}
		item := HistoryItem{
			GeneratedScript: sc,
			StatusLabel:     sc.StatusLabel(),
			IsFavorite:      m.IsFavorite,
			Tags:            m.Tags,
			Category:        m.Category,
		}
		if !item.matches(query, f) {
			continue
		}
		list.Items = append(list.Items, item)
	}

	sortItems(list.Items, f.Sort)
	return list, nil
}

func (it *HistoryItem) matches(query string, f HistoryFilter) bool {
	if f.Status != "" && f.Status != "all" && it.GenerationStatus != f.Status {
		return false
	}
	if f.FavoritesOnly && !it.IsFavorite {
		return false
	}
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(it.ScriptTitle), query) || strings.Contains(strings.ToLower(it.Topic), query) {
		return true
	}
	for _, tag := range it.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func sortItems(items []HistoryItem, by string) {
	sort.SliceStable(items, func(i, j int) bool {
		switch by {
		case SortTitle:
			return items[i].ScriptTitle < items[j].ScriptTitle
		case SortStatus:
			return items[i].GenerationStatus < items[j].GenerationStatus
		default:
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
	})
}

func (s *HistoryService) Delete(ctx context.Context, p auth.Principal, scriptID string) error {
	if _, err := ownedScript(ctx, s.store, p, scriptID); err != nil {
		return err
	}
	if err := s.store.DeleteScript(ctx, scriptID); err != nil {
		return fmt.Errorf("delete script: %w", err)
	}
	s.logger.Info("script deleted", zap.String("script_id", scriptID), zap.String("user_id", p.UserID))
	return nil
}

// UpdateMetadata upserts favorite, tags and category of a script.
func (s *HistoryService) UpdateMetadata(ctx context.Context, p auth.Principal, scriptID string, u MetadataUpdate) (*models.ScriptMetadata, error) {
	m, err := s.currentMetadata(ctx, p, scriptID)
	if err != nil {
		return nil, err
	}
	if u.IsFavorite != nil {
		m.IsFavorite = *u.IsFavorite
	}
	if u.Tags != nil {
		m.Tags = normalizeTags(u.Tags)
	}
	if u.Category != nil {
		m.Category = strings.TrimSpace(*u.Category)
		if m.Category == "" {
			m.Category = models.DefaultCategory
		}
	}
	return m, s.saveMetadata(ctx, m)
}

// AddTag appends tag to the script's tags unless it is already present.
func (s *HistoryService) AddTag(ctx context.Context, p auth.Principal, scriptID, tag string) (*models.ScriptMetadata, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, &ValidationError{Message: "Missing required fields", Fields: []string{"tag"}}
	}
	m, err := s.currentMetadata(ctx, p, scriptID)
	if err != nil {
		return nil, err
	}
	if !m.Tags.Contains(tag) {
		m.Tags = append(m.Tags, tag)
	}
	return m, s.saveMetadata(ctx, m)
}

func (s *HistoryService) currentMetadata(ctx context.Context, p auth.Principal, scriptID string) (*models.ScriptMetadata, error) {
	if _, err := ownedScript(ctx, s.store, p, scriptID); err != nil {
		return nil, err
	}
	m, err := s.store.GetMetadata(ctx, scriptID)
	switch {
	case err == nil:
		if m.Tags == nil {
			m.Tags = models.StringList{}
		}
		return m, nil
	case models.IsMissingTable(err):
		return nil, ErrMetadataUnavailable
	case errors.Is(err, models.ErrNotFound):
		d := models.DefaultMetadata(scriptID, p.UserID)
		return &d, nil
	default:
		return nil, fmt.Errorf("get metadata: %w", err)
	}
}

func (s *HistoryService) saveMetadata(ctx context.Context, m *models.ScriptMetadata) error {
	if err := s.store.UpsertMetadata(ctx, m); err != nil {
		if models.IsMissingTable(err) {
			return ErrMetadataUnavailable
		}
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func normalizeTags(tags []string) models.StringList {
	out := models.StringList{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" && !out.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}
