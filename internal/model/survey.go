package model

import (
	"fmt"
	"sort"
	"time"
)

// Operator is a conditional-logic comparison operator
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// ActionType is what a rule does when its condition holds
type ActionType string

const (
	ActionShowQuestion ActionType = "show_question"
	ActionHideQuestion ActionType = "hide_question"
	ActionSkipTo       ActionType = "skip_to"
	ActionEndSurvey    ActionType = "end_survey"
)

// NeedsTarget reports whether the action requires a target question id
func (a ActionType) NeedsTarget() bool {
	return a == ActionShowQuestion || a == ActionHideQuestion || a == ActionSkipTo
}

// Condition is an operator plus its operand (Value) or operand set (Values)
type Condition struct {
	Operator Operator      `json:"operator" bson:"operator" yaml:"operator"`
	Value    interface{}   `json:"value,omitempty" bson:"value,omitempty" yaml:"value,omitempty"`
	Values   []interface{} `json:"values,omitempty" bson:"values,omitempty" yaml:"values,omitempty"`
}

// Action is the effect of a rule
type Action struct {
	Type             ActionType `json:"type" bson:"type" yaml:"type"`
	TargetQuestionID string     `json:"targetQuestionId,omitempty" bson:"targetQuestionId,omitempty" yaml:"targetQuestionId,omitempty"`
}

// ConditionalRule branches the flow based on the answer to SourceQuestionID
type ConditionalRule struct {
	SourceQuestionID string    `json:"questionId" bson:"questionId" yaml:"questionId"`
	Condition        Condition `json:"condition" bson:"condition" yaml:"condition"`
	Action           Action    `json:"action" bson:"action" yaml:"action"`
}

// References reports whether the rule's source or target is questionID
func (r ConditionalRule) References(questionID string) bool {
	return r.SourceQuestionID == questionID || r.Action.TargetQuestionID == questionID
}

type SurveyStatus string

const (
	SurveyDraft     SurveyStatus = "draft"
	SurveyPublished SurveyStatus = "published"
	SurveyPaused    SurveyStatus = "paused"
	SurveyArchived  SurveyStatus = "archived"
	// SurveyDeleted is a soft delete, kept while responses reference the survey
	SurveyDeleted SurveyStatus = "deleted"
)

// GenerationConfig configures AI question authoring
type GenerationConfig struct {
	Enabled             bool    `json:"enabled" bson:"enabled" yaml:"enabled"`
	ConfidenceThreshold float64 `json:"confidenceThreshold" bson:"confidenceThreshold" yaml:"confidenceThreshold"` // 0-1
}

// ValidationConfig configures AI answer quality scoring
type ValidationConfig struct {
	Enabled          bool    `json:"enabled" bson:"enabled" yaml:"enabled"`
	QualityThreshold float64 `json:"qualityThreshold" bson:"qualityThreshold" yaml:"qualityThreshold"` // 0-1
}

// AdaptiveConfig configures mid-session AI follow-up insertion
type AdaptiveConfig struct {
	Enabled              bool `json:"enabled" bson:"enabled" yaml:"enabled"`
	MaxAdaptiveQuestions int  `json:"maxAdaptiveQuestions" bson:"maxAdaptiveQuestions" yaml:"maxAdaptiveQuestions"` // per session, 0-10
	HistoryWindow        int  `json:"historyWindow" bson:"historyWindow" yaml:"historyWindow"`                      // prior answers sent to the model
}

const (
	DefaultMaxAdaptiveQuestions = 3
	MaxAdaptiveQuestionsLimit   = 10
	DefaultHistoryWindow        = 3
)

// Cap returns the effective per-session insertion bound
func (c AdaptiveConfig) Cap() int {
	switch {
	case c.MaxAdaptiveQuestions <= 0:
		return DefaultMaxAdaptiveQuestions
	case c.MaxAdaptiveQuestions > MaxAdaptiveQuestionsLimit:
		return MaxAdaptiveQuestionsLimit
	default:
		return c.MaxAdaptiveQuestions
	}
}

// Window returns the effective number of prior answers used for follow-up generation
func (c AdaptiveConfig) Window() int {
	if c.HistoryWindow <= 0 {
		return DefaultHistoryWindow
	}
	return c.HistoryWindow
}

// AIConfiguration groups the per-survey AI switches
type AIConfiguration struct {
	QuestionGeneration  GenerationConfig `json:"questionGeneration" bson:"questionGeneration" yaml:"questionGeneration"`
	ResponseValidation  ValidationConfig `json:"responseValidation" bson:"responseValidation" yaml:"responseValidation"`
	AdaptiveQuestioning AdaptiveConfig   `json:"adaptiveQuestioning" bson:"adaptiveQuestioning" yaml:"adaptiveQuestioning"`
}

// DefaultAIConfiguration mirrors the defaults a new survey gets
func DefaultAIConfiguration() AIConfiguration {
	return AIConfiguration{
		QuestionGeneration:  GenerationConfig{Enabled: true, ConfidenceThreshold: 0.8},
		ResponseValidation:  ValidationConfig{Enabled: true, QualityThreshold: 0.7},
		AdaptiveQuestioning: AdaptiveConfig{Enabled: false, MaxAdaptiveQuestions: DefaultMaxAdaptiveQuestions, HistoryWindow: DefaultHistoryWindow},
	}
}

// WithDefaults fills the sections and thresholds a partial configuration left
// empty. A section given with any field set keeps its switch as sent.
func (c AIConfiguration) WithDefaults() AIConfiguration {
	def := DefaultAIConfiguration()
	if c.QuestionGeneration == (GenerationConfig{}) {
		c.QuestionGeneration = def.QuestionGeneration
	} else if c.QuestionGeneration.ConfidenceThreshold <= 0 {
		c.QuestionGeneration.ConfidenceThreshold = def.QuestionGeneration.ConfidenceThreshold
	}
	if c.ResponseValidation == (ValidationConfig{}) {
		c.ResponseValidation = def.ResponseValidation
	} else if c.ResponseValidation.QualityThreshold <= 0 {
		c.ResponseValidation.QualityThreshold = def.ResponseValidation.QualityThreshold
	}
	if c.AdaptiveQuestioning == (AdaptiveConfig{}) {
		c.AdaptiveQuestioning = def.AdaptiveQuestioning
	} else {
		if c.AdaptiveQuestioning.MaxAdaptiveQuestions <= 0 {
			c.AdaptiveQuestioning.MaxAdaptiveQuestions = def.AdaptiveQuestioning.MaxAdaptiveQuestions
		}
		if c.AdaptiveQuestioning.HistoryWindow <= 0 {
			c.AdaptiveQuestioning.HistoryWindow = def.AdaptiveQuestioning.HistoryWindow
		}
	}
	return c
}

// SurveySettings limits when and how often a survey can be taken. Zero values
// mean no limit.
type SurveySettings struct {
	MaxResponses int        `json:"maxResponses,omitempty" bson:"maxResponses,omitempty" yaml:"maxResponses,omitempty"`
	TimeLimit    int        `json:"timeLimit,omitempty" bson:"timeLimit,omitempty" yaml:"timeLimit,omitempty"` // minutes per session
	LaunchDate   *time.Time `json:"launchDate,omitempty" bson:"launchDate,omitempty" yaml:"launchDate,omitempty"`
	ExpiryDate   *time.Time `json:"expiryDate,omitempty" bson:"expiryDate,omitempty" yaml:"expiryDate,omitempty"`
}

// Validate checks the settings are internally consistent
func (s SurveySettings) Validate() error {
	if s.MaxResponses < 0 {
		return fmt.Errorf("maxResponses must not be negative")
	}
	if s.TimeLimit < 0 {
		return fmt.Errorf("timeLimit must not be negative")
	}
	if s.LaunchDate != nil && s.ExpiryDate != nil && !s.ExpiryDate.After(*s.LaunchDate) {
		return fmt.Errorf("expiryDate must be after launchDate")
	}
	return nil
}

// SessionDeadline returns when a session started at startedAt runs out of time
func (s SurveySettings) SessionDeadline(startedAt time.Time) (time.Time, bool) {
	if s.TimeLimit <= 0 {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(s.TimeLimit) * time.Minute), true
}

// SurveyStats are lifetime session counters, only ever incremented
type SurveyStats struct {
	TotalStarted   int64 `json:"totalStarted" bson:"totalStarted"`
	TotalCompleted int64 `json:"totalCompleted" bson:"totalCompleted"`
	TotalDropouts  int64 `json:"totalDropouts" bson:"totalDropouts"`
}

// Survey is a persistent survey definition owned by a host
type Survey struct {
	ID             string            `json:"id" bson:"_id,omitempty" yaml:"id,omitempty"`
	OwnerID        string            `json:"ownerId" bson:"ownerId" yaml:"ownerId,omitempty"`
	Title          string            `json:"title" bson:"title" yaml:"title"`
	Description    string            `json:"description,omitempty" bson:"description,omitempty" yaml:"description,omitempty"`
	Category       string            `json:"category,omitempty" bson:"category,omitempty" yaml:"category,omitempty"`
	TargetAudience string            `json:"targetAudience,omitempty" bson:"targetAudience,omitempty" yaml:"targetAudience,omitempty"`
	Language       string            `json:"language,omitempty" bson:"language,omitempty" yaml:"language,omitempty"`
	Questions      []Question        `json:"questions" bson:"questions" yaml:"questions"`
	Rules          []ConditionalRule `json:"conditionalLogic" bson:"conditionalLogic" yaml:"conditionalLogic"`
	AI             AIConfiguration   `json:"aiConfiguration" bson:"aiConfiguration" yaml:"aiConfiguration"`
	Settings       SurveySettings    `json:"settings" bson:"settings" yaml:"settings"`
	Stats          SurveyStats       `json:"stats" bson:"stats" yaml:"-"`
	Status         SurveyStatus      `json:"status" bson:"status" yaml:"status,omitempty"`
	Version        int64             `json:"version" bson:"version" yaml:"version,omitempty"` // monotonic, bumped on every write
	PublishedAt    *time.Time        `json:"publishedAt,omitempty" bson:"publishedAt,omitempty" yaml:"-"`
	DeletedAt      *time.Time        `json:"deletedAt,omitempty" bson:"deletedAt,omitempty" yaml:"-"`
	CreatedAt      time.Time         `json:"createdAt" bson:"createdAt" yaml:"-"`
	UpdatedAt      time.Time         `json:"updatedAt" bson:"updatedAt" yaml:"-"`
}

// Question looks up a question by id
func (s *Survey) Question(id string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// RemoveQuestion deletes a question and prunes every rule that references it.
// Remaining questions keep their relative order and get contiguous ordinals.
func (s *Survey) RemoveQuestion(id string) bool {
	idx := -1
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.Questions = append(s.Questions[:idx], s.Questions[idx+1:]...)

	kept := s.Rules[:0]
	for _, r := range s.Rules {
		if !r.References(id) {
			kept = append(kept, r)
		}
	}
	s.Rules = kept

	s.SortQuestions()
	for i := range s.Questions {
		s.Questions[i].Order = i + 1
	}
	return true
}

// ReorderQuestions reassigns ordinals to match ids. ids must be a permutation of
// the current question ids.
func (s *Survey) ReorderQuestions(ids []string) error {
	if len(ids) != len(s.Questions) {
		return fmt.Errorf("reorder: expected %d ids, got %d", len(s.Questions), len(ids))
	}
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := pos[id]; dup {
			return fmt.Errorf("reorder: duplicate id %q", id)
		}
		pos[id] = i + 1
	}
	for i := range s.Questions {
		p, ok := pos[s.Questions[i].ID]
		if !ok {
			return fmt.Errorf("reorder: missing id %q", s.Questions[i].ID)
		}
		s.Questions[i].Order = p
	}
	s.SortQuestions()
	return nil
}

// SortQuestions orders questions by ordinal, keeping declaration order on ties
func (s *Survey) SortQuestions() {
	sort.SliceStable(s.Questions, func(i, j int) bool {
		return s.Questions[i].Order < s.Questions[j].Order
	})
}
