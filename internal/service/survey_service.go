package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/cache"
	"smartsurvey/internal/flow"
	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
	"smartsurvey/internal/repository"
)

// SurveyService handles survey authoring for hosts
type SurveyService struct {
	surveyRepo   repository.SurveyRepo
	responseRepo repository.ResponseRepo
	graphs       *GraphRegistry
	generator    QuestionGenerator
	cache        *cache.ResponseCache
	cacheTTL     time.Duration
	live         cache.LiveProgressCache
	log          *logger.Logger
}

// NewSurveyService creates a new survey service
func NewSurveyService(
	surveyRepo repository.SurveyRepo,
	responseRepo repository.ResponseRepo,
	graphs *GraphRegistry,
	generator QuestionGenerator,
	rc *cache.ResponseCache,
	cacheTTL time.Duration,
	log *logger.Logger,
) *SurveyService {
	if log == nil {
		log = logger.NewNop()
	}
	return &SurveyService{
		surveyRepo:   surveyRepo,
		responseRepo: responseRepo,
		graphs:       graphs,
		generator:    generator,
		cache:        rc,
		cacheTTL:     cacheTTL,
		log:          log,
	}
}

// SetLiveProgress enables the live progress board for hosts
func (s *SurveyService) SetLiveProgress(live cache.LiveProgressCache) {
	s.live = live
}

// Create stores a new draft survey owned by ownerID
func (s *SurveyService) Create(ctx context.Context, ownerID string, survey *model.Survey) error {
	if strings.TrimSpace(survey.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidSurvey)
	}
	survey.ID = ""
	survey.OwnerID = ownerID
	survey.Status = model.SurveyDraft
	survey.Version = 0
	survey.PublishedAt = nil
	survey.DeletedAt = nil
	survey.Stats = model.SurveyStats{}
	survey.AI = survey.AI.WithDefaults()
	NormalizeQuestions(survey)

	if err := check(survey, flow.BuildLenient); err != nil {
		return err
	}
	return s.surveyRepo.Create(ctx, survey)
}

// Get returns a survey the host owns
func (s *SurveyService) Get(ctx context.Context, ownerID, id string) (*model.Survey, error) {
	survey, err := s.surveyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	if survey.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return survey, nil
}

// editable returns a survey the host owns and may still change
func (s *SurveyService) editable(ctx context.Context, ownerID, id string) (*model.Survey, error) {
	survey, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if survey.Status == model.SurveyDeleted {
		return nil, ErrSurveyDeleted
	}
	return survey, nil
}

// GetPublished returns a survey respondents may see
func (s *SurveyService) GetPublished(ctx context.Context, id string) (*model.Survey, error) {
	survey, err := s.surveyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	if survey.Status == model.SurveyDeleted {
		return nil, ErrSurveyDeleted
	}
	if survey.Status != model.SurveyPublished {
		return nil, ErrSurveyNotPublished
	}
	return survey, nil
}

// List returns every survey of a host, most recently updated first
func (s *SurveyService) List(ctx context.Context, ownerID string) ([]*model.Survey, error) {
	return s.surveyRepo.ListByOwner(ctx, ownerID)
}

// Update replaces the editable fields of a survey. expectedVersion must match
// the stored version. Questions that already have recorded answers must come
// back unchanged apart from their ordinal.
func (s *SurveyService) Update(ctx context.Context, ownerID string, in *model.Survey, expectedVersion int64) (*model.Survey, error) {
	survey, err := s.editable(ctx, ownerID, in.ID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidSurvey)
	}
	previous := append([]model.Question(nil), survey.Questions...)

	survey.Title = in.Title
	survey.Description = in.Description
	survey.Category = in.Category
	survey.TargetAudience = in.TargetAudience
	survey.Language = in.Language
	survey.Questions = in.Questions
	survey.Rules = in.Rules
	survey.AI = in.AI.WithDefaults()
	survey.Settings = in.Settings
	NormalizeQuestions(survey)

	locked, err := s.lockedQuestions(ctx, survey.ID)
	if err != nil {
		return nil, err
	}
	for i := range previous {
		old := &previous[i]
		if !locked[old.ID] {
			continue
		}
		q, ok := survey.Question(old.ID)
		if !ok || !q.SameContent(old) {
			return nil, fmt.Errorf("%w: %s", ErrQuestionLocked, old.ID)
		}
	}

	return survey, s.save(ctx, survey, expectedVersion)
}

// DeleteResult reports how a survey was removed
type DeleteResult struct {
	ResponseCount int64 `json:"responseCount"`
	Soft          bool  `json:"soft"`
}

// Delete removes a survey. A survey with recorded responses is only marked
// deleted so those responses keep their definition.
func (s *SurveyService) Delete(ctx context.Context, ownerID, id string) (*DeleteResult, error) {
	survey, err := s.editable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	count, err := s.responseRepo.CountBySurvey(ctx, id)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		now := time.Now()
		survey.Status = model.SurveyDeleted
		survey.DeletedAt = &now
		if err := s.surveyRepo.Update(ctx, survey, survey.Version); err != nil {
			return nil, err
		}
		s.graphs.Forget(id)
		s.log.Info("survey soft deleted", "survey_id", id, "responses", count)
		return &DeleteResult{ResponseCount: count, Soft: true}, nil
	}

	if err := s.surveyRepo.Delete(ctx, id); err != nil {
		return nil, err
	}
	s.graphs.Forget(id)
	s.log.Info("survey deleted", "survey_id", id)
	return &DeleteResult{}, nil
}

// DeleteQuestion removes a question, prunes every rule that references it and
// closes the gap in the ordinals. Answered questions cannot be removed.
func (s *SurveyService) DeleteQuestion(ctx context.Context, ownerID, id, questionID string, expectedVersion int64) (*model.Survey, error) {
	survey, err := s.editable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	locked, err := s.lockedQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if locked[questionID] {
		return nil, fmt.Errorf("%w: %s", ErrQuestionLocked, questionID)
	}
	if !survey.RemoveQuestion(questionID) {
		return nil, ErrQuestionNotFound
	}
	return survey, s.save(ctx, survey, expectedVersion)
}

func (s *SurveyService) lockedQuestions(ctx context.Context, surveyID string) (map[string]bool, error) {
	ids, err := s.responseRepo.AnsweredQuestionIDs(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("load answered questions: %w", err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// ReorderQuestions assigns ordinals following ids
func (s *SurveyService) ReorderQuestions(ctx context.Context, ownerID, id string, ids []string, expectedVersion int64) (*model.Survey, error) {
	survey, err := s.editable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := survey.ReorderQuestions(ids); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSurvey, err)
	}
	return survey, s.save(ctx, survey, expectedVersion)
}

// AddRule appends a conditional rule after checking its references
func (s *SurveyService) AddRule(ctx context.Context, ownerID, id string, rule model.ConditionalRule, expectedVersion int64) (*model.Survey, error) {
	survey, err := s.editable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	survey.Rules = append(survey.Rules, rule)
	idx := len(survey.Rules) - 1

	g, err := flow.BuildLenient(survey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSurvey, err)
	}
	for _, w := range g.Warnings() {
		var rce *flow.RuleConfigurationError
		if errors.As(w, &rce) && rce.RuleIndex == idx {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSurvey, rce)
		}
	}
	return survey, s.save(ctx, survey, expectedVersion)
}

// Publish builds the strict flow graph and activates the survey. Cycles and
// dangling references block activation, as does an expiry date already past.
// A survey without a launch date opens now.
func (s *SurveyService) Publish(ctx context.Context, ownerID, id string, expectedVersion int64) (*model.Survey, error) {
	survey, err := s.editable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if exp := survey.Settings.ExpiryDate; exp != nil && !exp.After(now) {
		return nil, fmt.Errorf("%w: expiryDate %s is in the past", ErrInvalidSurvey, exp.Format(time.RFC3339))
	}

	if _, err := flow.Build(survey); err != nil {
		if errors.Is(err, flow.ErrCycleDetected) {
			s.log.Error("publish blocked by cycle", "survey_id", id, "error", err)
		} else {
			s.log.Warn("publish blocked by invalid flow", "survey_id", id, "error", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSurvey, err)
	}

	survey.Status = model.SurveyPublished
	survey.PublishedAt = &now
	if survey.Settings.LaunchDate == nil {
		survey.Settings.LaunchDate = &now
	}
	if err := s.surveyRepo.Update(ctx, survey, expectedVersion); err != nil {
		return nil, err
	}

	// rebuild for the bumped version so sessions hit a warm graph
	if g, err := flow.Build(survey); err == nil {
		s.graphs.Put(g)
	}
	s.log.Info("survey published", "survey_id", id, "version", survey.Version)
	return survey, nil
}

// SetStatus pauses, archives or returns a survey to draft. Publishing goes
// through Publish.
func (s *SurveyService) SetStatus(ctx context.Context, ownerID, id string, status model.SurveyStatus, expectedVersion int64) (*model.Survey, error) {
	switch status {
	case model.SurveyDraft, model.SurveyPaused, model.SurveyArchived:
	case model.SurveyPublished:
		return s.Publish(ctx, ownerID, id, expectedVersion)
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidSurvey, status)
	}
	survey, err := s.editable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	survey.Status = status
	if err := s.surveyRepo.Update(ctx, survey, expectedVersion); err != nil {
		return nil, err
	}
	return survey, nil
}

// GenerateQuestions asks the AI for candidate questions for a survey. The
// result is only a suggestion; nothing is written to the survey.
func (s *SurveyService) GenerateQuestions(ctx context.Context, ownerID, id string, req ai.GenerationRequest) ([]model.Question, error) {
	survey, err := s.editable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !survey.AI.QuestionGeneration.Enabled {
		return nil, ErrGenerationDisabled
	}
	if req.Category == "" {
		req.Category = survey.Category
	}
	if req.TargetAudience == "" {
		req.TargetAudience = survey.TargetAudience
	}
	if req.Language == "" {
		req.Language = survey.Language
	}
	if len(req.Prompts) == 0 {
		req.Prompts = []string{survey.Title, survey.Description}
	}

	key, err := cache.Key("generate", req)
	if err != nil {
		return nil, err
	}
	generated, err := cache.GetOrComputeJSON(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) ([]model.Question, error) {
		return s.generator.GenerateQuestions(ctx, req)
	})
	if err != nil {
		s.log.Warn("question generation failed", "survey_id", id, "error", err)
		return nil, err
	}

	threshold := survey.AI.QuestionGeneration.ConfidenceThreshold
	out := make([]model.Question, 0, len(generated))
	for _, q := range generated {
		if q.Confidence != nil && *q.Confidence < threshold {
			continue
		}
		q.ID = "ai_" + uuid.NewString()[:8]
		q.Provenance = model.ProvenanceAIGenerated
		out = append(out, q)
	}
	return out, nil
}

// Responses lists recorded responses of a survey the host owns
func (s *SurveyService) Responses(ctx context.Context, ownerID, id string, limit int64) ([]*model.Response, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.responseRepo.ListBySurvey(ctx, id, limit)
}

// LiveProgress is the host's view of sessions still in progress
type LiveProgress struct {
	InProgress int64               `json:"inProgress"`
	Sessions   []cache.LiveSession `json:"sessions"`
}

// Live returns in-progress sessions ranked by answers given
func (s *SurveyService) Live(ctx context.Context, ownerID, id string, limit int) (*LiveProgress, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	if s.live == nil {
		return &LiveProgress{Sessions: []cache.LiveSession{}}, nil
	}
	count, err := s.live.Count(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.live.Top(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	return &LiveProgress{InProgress: count, Sessions: sessions}, nil
}

// save validates and writes an edited survey. Published surveys must still
// pass the strict build.
func (s *SurveyService) save(ctx context.Context, survey *model.Survey, expectedVersion int64) error {
	build := flow.BuildLenient
	if survey.Status == model.SurveyPublished {
		build = flow.Build
	}
	if err := check(survey, build); err != nil {
		return err
	}
	return s.surveyRepo.Update(ctx, survey, expectedVersion)
}

// check validates settings, answer rules and the flow graph
func check(survey *model.Survey, build func(*model.Survey) (*flow.Graph, error)) error {
	if err := survey.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSurvey, err)
	}
	if err := checkQuestionRules(survey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSurvey, err)
	}
	if _, err := build(survey); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSurvey, err)
	}
	return nil
}

// NormalizeQuestions fills ids, ordinals and provenance left empty by the author
func NormalizeQuestions(survey *model.Survey) {
	used := make(map[string]bool, len(survey.Questions))
	for _, q := range survey.Questions {
		if q.ID != "" {
			used[q.ID] = true
		}
	}
	n := 1
	for i := range survey.Questions {
		q := &survey.Questions[i]
		if q.ID == "" {
			for used[fmt.Sprintf("Q%d", n)] {
				n++
			}
			q.ID = fmt.Sprintf("Q%d", n)
			used[q.ID] = true
		}
		if q.Order == 0 {
			q.Order = i + 1
		}
		if q.Provenance == "" {
			q.Provenance = model.ProvenanceAuthored
		}
	}
	survey.SortQuestions()
}
