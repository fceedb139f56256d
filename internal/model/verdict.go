package model

import "time"

// QualityVerdict is the advisory AI assessment of a submitted answer
type QualityVerdict struct {
	IsValid      bool     `json:"isValid" bson:"isValid"`
	Confidence   float64  `json:"confidence" bson:"confidence"` // 0-1
	Issues       []string `json:"issues" bson:"issues"`
	Suggestions  []string `json:"suggestions,omitempty" bson:"suggestions,omitempty"`
	QualityScore float64  `json:"qualityScore" bson:"qualityScore"` // 0-10
}

// QuestionVerdict is a verdict stored on a response document
type QuestionVerdict struct {
	QuestionID string         `json:"questionId" bson:"questionId"`
	Verdict    QualityVerdict `json:"verdict" bson:"verdict"`
	Fallback   bool           `json:"fallback,omitempty" bson:"fallback,omitempty"`     // AI unavailable, default verdict used
	LowQuality bool           `json:"lowQuality,omitempty" bson:"lowQuality,omitempty"` // score below the survey's quality threshold
	AssessedAt time.Time      `json:"assessedAt" bson:"assessedAt"`
}

// DefaultVerdict is returned whenever validation cannot be performed
func DefaultVerdict() QualityVerdict {
	return QualityVerdict{
		IsValid:      true,
		Confidence:   0.5,
		Issues:       []string{"validation unavailable"},
		QualityScore: 5,
	}
}
