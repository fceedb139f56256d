package model

import "slices"

// QuestionType defines the type of question
type QuestionType string

const (
	QuestionTypeText           QuestionType = "text"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeRating         QuestionType = "rating"
	QuestionTypeNumber         QuestionType = "number"
	QuestionTypeDate           QuestionType = "date"
	QuestionTypeBoolean        QuestionType = "boolean"
	QuestionTypeDropdown       QuestionType = "dropdown"
	QuestionTypeMatrix         QuestionType = "matrix"
)

// QuestionTypes lists every supported question type
var QuestionTypes = []QuestionType{
	QuestionTypeText,
	QuestionTypeMultipleChoice,
	QuestionTypeRating,
	QuestionTypeNumber,
	QuestionTypeDate,
	QuestionTypeBoolean,
	QuestionTypeDropdown,
	QuestionTypeMatrix,
}

// Valid reports whether t is one of the supported types
func (t QuestionType) Valid() bool {
	for _, qt := range QuestionTypes {
		if qt == t {
			return true
		}
	}
	return false
}

// HasOptions reports whether the type needs an option list
func (t QuestionType) HasOptions() bool {
	return t == QuestionTypeMultipleChoice || t == QuestionTypeDropdown || t == QuestionTypeMatrix
}

// Provenance marks where a question came from
type Provenance string

const (
	ProvenanceAuthored    Provenance = "authored"
	ProvenanceAIGenerated Provenance = "ai_generated"
)

// ValidationRules constrains acceptable answers for a question
type ValidationRules struct {
	MinLength *int     `json:"minLength,omitempty" bson:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" bson:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty" bson:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" bson:"max,omitempty" yaml:"max,omitempty"`
	Pattern   string   `json:"pattern,omitempty" bson:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Question is a survey question, authored or AI-generated
type Question struct {
	ID          string          `json:"id" bson:"id" yaml:"id"` // unique within a survey, e.g. "Q1", "Q1.f1"
	Type        QuestionType    `json:"type" bson:"type" yaml:"type"`
	Text        string          `json:"text" bson:"text" yaml:"text"`
	Description string          `json:"description,omitempty" bson:"description,omitempty" yaml:"description,omitempty"`
	Order       int             `json:"order" bson:"order" yaml:"order"`
	Required    bool            `json:"required" bson:"required" yaml:"required"`
	Options     []string        `json:"options,omitempty" bson:"options,omitempty" yaml:"options,omitempty"`
	Validation  ValidationRules `json:"validation" bson:"validation" yaml:"validation"`
	Provenance  Provenance      `json:"provenance" bson:"provenance" yaml:"provenance"`
	Confidence  *float64        `json:"confidence,omitempty" bson:"confidence,omitempty" yaml:"confidence,omitempty"` // AI-generated only, 0-1
	ParentID    string          `json:"parentId,omitempty" bson:"parentId,omitempty" yaml:"parentId,omitempty"`       // For follow-ups, points to the question that triggered it
}

// IsAIGenerated reports whether the question was produced by the AI gateway
func (q *Question) IsAIGenerated() bool {
	return q.Provenance == ProvenanceAIGenerated
}

// SameContent reports whether q and o ask the same thing. Ordinal position is
// ignored since reordering never changes a question's meaning.
func (q *Question) SameContent(o *Question) bool {
	return q.ID == o.ID &&
		q.Type == o.Type &&
		q.Text == o.Text &&
		q.Description == o.Description &&
		q.Required == o.Required &&
		slices.Equal(q.Options, o.Options) &&
		q.Validation.equal(o.Validation) &&
		q.Provenance == o.Provenance &&
		q.ParentID == o.ParentID &&
		samePtr(q.Confidence, o.Confidence)
}

func (r ValidationRules) equal(o ValidationRules) bool {
	return samePtr(r.MinLength, o.MinLength) &&
		samePtr(r.MaxLength, o.MaxLength) &&
		samePtr(r.Min, o.Min) &&
		samePtr(r.Max, o.Max) &&
		r.Pattern == o.Pattern
}

func samePtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
