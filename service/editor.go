package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"scriptslap-server/auth"
	"scriptslap-server/models"
	"scriptslap-server/scriptbody"

	"go.uber.org/zap"
)

// ScriptView is a script as the editor shows it. The decoded parts are set
// only for complete scripts; ContentError explains a body that could not be
// decoded.
type ScriptView struct {
	Script           *models.GeneratedScript `json:"script"`
	StatusLabel      string                  `json:"status_label"`
	Title            string                  `json:"title,omitempty"`
	Hook             string                  `json:"hook,omitempty"`
	CallToAction     string                  `json:"call_to_action,omitempty"`
	BRollSuggestions []string                `json:"b_roll_suggestions,omitempty"`
	Structure        *scriptbody.Structure   `json:"structure,omitempty"`
	Paragraphs       []string                `json:"paragraphs,omitempty"`
	ContentError     string                  `json:"content_error,omitempty"`
}

// SelectResult is the outcome of applying a refinement option.
type SelectResult struct {
	Refinement *models.ScriptRefinement `json:"refinement"`
	Version    int                      `json:"version"`
}

// ExportResult points at an exported markdown file.
type ExportResult struct {
	URL        string `json:"url"`
	ObjectName string `json:"object_name"`
	ExpiresIn  int    `json:"expires_in"`
}

// EditorService serves the script editor: reading a script, applying or
// dismissing refinement options and exporting.
type EditorService struct {
	store   Store
	objects ObjectStore
	logger  *zap.Logger
}

func NewEditorService(store Store, objects ObjectStore, logger *zap.Logger) *EditorService {
	return &EditorService{store: store, objects: objects, logger: logger.Named("editor")}
}

// ownedScript loads a script and hides scripts of other users as not found.
func ownedScript(ctx context.Context, store Store, p auth.Principal, scriptID string) (*models.GeneratedScript, error) {
	script, err := store.GetScript(ctx, scriptID)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", scriptID, err)
	}
	if script.UserID != p.UserID {
		return nil, fmt.Errorf("script %s: %w", scriptID, models.ErrNotFound)
	}
	return script, nil
}

func ownedRefinement(ctx context.Context, store Store, p auth.Principal, refinementID string) (*models.ScriptRefinement, error) {
	ref, err := store.GetRefinement(ctx, refinementID)
	if err != nil {
		return nil, fmt.Errorf("refinement %s: %w", refinementID, err)
	}
	if ref.UserID != p.UserID {
		return nil, fmt.Errorf("refinement %s: %w", refinementID, models.ErrNotFound)
	}
	return ref, nil
}

func (s *EditorService) GetScript(ctx context.Context, p auth.Principal, scriptID string) (*ScriptView, error) {
	script, err := ownedScript(ctx, s.store, p, scriptID)
	if err != nil {
		return nil, err
	}
	return BuildScriptView(script), nil
}

// BuildScriptView decodes a complete script's body into its editor parts.
func BuildScriptView(script *models.GeneratedScript) *ScriptView {
	view := &ScriptView{Script: script, StatusLabel: script.StatusLabel()}
	if script.GenerationStatus != models.ScriptStatusComplete {
		return view
	}
	if strings.TrimSpace(script.ScriptBodyMarkdown) == "" {
		view.ContentError = "Script is marked complete but has no content"
		return view
	}
	out, err := scriptbody.DecodeBody(script.ScriptBodyMarkdown)
	if err != nil {
		view.ContentError = "Failed to parse script content: " + err.Error()
		return view
	}
	text := out.MainBodyText()
	st := scriptbody.ParseSections(text)
	view.Title = out.Title
	view.Hook = out.Hook
	view.CallToAction = out.CallToAction
	view.BRollSuggestions = out.BRoll
	view.Structure = &st
	view.Paragraphs = scriptbody.SplitParagraphs(text)
	return view
}

func (s *EditorService) ListRefinements(ctx context.Context, p auth.Principal, scriptID string) ([]models.ScriptRefinement, error) {
	if _, err := ownedScript(ctx, s.store, p, scriptID); err != nil {
		return nil, err
	}
	return s.store.ListRefinements(ctx, scriptID)
}

// SelectRefinement applies one of a refinement's options to the script body.
func (s *EditorService) SelectRefinement(ctx context.Context, p auth.Principal, refinementID, option string) (*SelectResult, error) {
	option = strings.TrimSpace(option)
	if option == "" {
		return nil, &ValidationError{Message: "Missing required fields", Fields: []string{"option"}}
	}
	ref, err := ownedRefinement(ctx, s.store, p, refinementID)
	if err != nil {
		return nil, err
	}
	if ref.Status != models.RefinementStatusReady {
		return nil, fmt.Errorf("refinement %s is %s: %w", ref.ID, ref.Status, ErrRefinementClosed)
	}
	if len(ref.GeneratedOptions) > 0 && !ref.GeneratedOptions.Contains(option) {
		return nil, &ValidationError{Message: "Option is not one of the generated options", Fields: []string{"option"}}
	}

	script, err := ownedScript(ctx, s.store, p, ref.ScriptID)
	if err != nil {
		return nil, err
	}
	if script.GenerationStatus != models.ScriptStatusComplete {
		return nil, ErrScriptNotComplete
	}
	out, err := scriptbody.DecodeBody(script.ScriptBodyMarkdown)
	if err != nil {
		return nil, fmt.Errorf("decode script body: %w", err)
	}
	sel, err := selectionFor(ref, option)
	if err != nil {
		return nil, err
	}
	if err := scriptbody.Apply(out, sel); err != nil {
		if errors.Is(err, scriptbody.ErrIndexOutOfRange) {
			return nil, &ValidationError{Message: "Refinement position is outside the script", Fields: []string{"paragraphPosition"}}
		}
		return nil, fmt.Errorf("apply refinement: %w", err)
	}
	body, err := out.Encode()
	if err != nil {
		return nil, err
	}

	version, err := s.store.ApplyRefinement(ctx, ref.ID, option, script.ID, body)
	if errors.Is(err, models.ErrNotReady) {
		return nil, fmt.Errorf("refinement %s: %w", ref.ID, ErrRefinementClosed)
	}
	if err != nil {
		return nil, fmt.Errorf("apply refinement: %w", err)
	}
	ref.Status = models.RefinementStatusApplied
	ref.SelectedOption = option
	s.logger.Info("refinement applied",
		zap.String("refinement_id", ref.ID),
		zap.String("script_id", script.ID),
		zap.Int("version", version),
	)
	return &SelectResult{Refinement: ref, Version: version}, nil
}

func selectionFor(ref *models.ScriptRefinement, option string) (scriptbody.Selection, error) {
	sel := scriptbody.Selection{Target: ref.RefinementType, Option: option}
	req := ref.Request
	var pos *int
	field := "paragraphPosition"
	switch ref.RefinementType {
	case models.RefinementSection:
		pos, field = req.SectionIndex, "sectionIndex"
		if pos == nil {
			pos = req.ParagraphPosition
		}
	case models.RefinementParagraph, models.RefinementAddParagraph:
		pos = req.ParagraphPosition
	default:
		return sel, nil
	}
	if pos == nil {
		return sel, &ValidationError{Message: "Refinement has no position in the script", Fields: []string{field}}
	}
	sel.Index = *pos
	return sel, nil
}

// DismissRefinement closes a refinement without applying it.
func (s *EditorService) DismissRefinement(ctx context.Context, p auth.Principal, refinementID string) (*models.ScriptRefinement, error) {
	ref, err := ownedRefinement(ctx, s.store, p, refinementID)
	if err != nil {
		return nil, err
	}
	if ref.Status == models.RefinementStatusApplied {
		return nil, fmt.Errorf("refinement %s is applied: %w", ref.ID, ErrRefinementClosed)
	}
	if err := s.store.SetRefinementStatus(ctx, ref.ID, models.RefinementStatusDismissed, ""); err != nil {
		return nil, err
	}
	ref.Status = models.RefinementStatusDismissed
	return ref, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._]+`)

// Export renders a complete script as markdown and uploads it.
func (s *EditorService) Export(ctx context.Context, p auth.Principal, scriptID string) (*ExportResult, error) {
	if s.objects == nil {
		return nil, errors.New("object storage is not configured")
	}
	script, err := ownedScript(ctx, s.store, p, scriptID)
	if err != nil {
		return nil, err
	}
	if script.GenerationStatus != models.ScriptStatusComplete {
		return nil, ErrScriptNotComplete
	}
	out, err := scriptbody.DecodeBody(script.ScriptBodyMarkdown)
	if err != nil {
		return nil, fmt.Errorf("decode script body: %w", err)
	}

	md := scriptbody.RenderMarkdown(out, script.ScriptTitle)
	objectName := fmt.Sprintf("exports/%s/%s/v%d.md", script.UserID, script.ID, script.Version)
	fileName := strings.Trim(unsafeFileChars.ReplaceAllString(script.ScriptTitle, "-"), "-")
	if fileName == "" {
		fileName = "script"
	}

	url, err := s.objects.Put(ctx, objectName, "text/markdown; charset=utf-8", fileName+".md", []byte(md))
	if err != nil {
		return nil, fmt.Errorf("export script: %w", err)
	}
	return &ExportResult{URL: url, ObjectName: objectName, ExpiresIn: int(s.objects.Expiry().Seconds())}, nil
}
