package service

import (
	"context"
	"time"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/cache"
	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
)

// ValidationPolicy turns AI answer scoring into a verdict that is always
// available. Verdicts are advisory and never gate the flow.
type ValidationPolicy struct {
	validator ResponseValidator
	cache     *cache.ResponseCache
	ttl       time.Duration
	log       *logger.Logger
}

func NewValidationPolicy(validator ResponseValidator, rc *cache.ResponseCache, ttl time.Duration, log *logger.Logger) *ValidationPolicy {
	if log == nil {
		log = logger.NewNop()
	}
	return &ValidationPolicy{
		validator: validator,
		cache:     rc,
		ttl:       ttl,
		log:       log,
	}
}

type validationKey struct {
	QuestionID string             `json:"questionId"`
	Text       string             `json:"text"`
	Type       model.QuestionType `json:"type"`
	Answer     interface{}        `json:"answer"`
}

// Assess scores answer against q. When the AI cannot produce a verdict the
// default verdict is returned with fallback set.
func (p *ValidationPolicy) Assess(ctx context.Context, q model.Question, answer interface{}) (verdict model.QualityVerdict, fallback bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("response validation panicked", "question_id", q.ID, "panic", r)
			verdict, fallback = model.DefaultVerdict(), true
		}
	}()

	key, err := cache.Key("validate", validationKey{QuestionID: q.ID, Text: q.Text, Type: q.Type, Answer: answer})
	if err != nil {
		p.log.Warn("validation cache key failed", "question_id", q.ID, "error", err)
		return model.DefaultVerdict(), true
	}

	v, err := cache.GetOrComputeJSON(ctx, p.cache, key, p.ttl, func(ctx context.Context) (model.QualityVerdict, error) {
		return p.validator.ValidateResponse(ctx, ai.ValidationRequest{Question: q, Answer: answer})
	})
	if err != nil {
		p.log.Warn("response validation unavailable, using default verdict", "question_id", q.ID, "error", err)
		return model.DefaultVerdict(), true
	}
	return v, false
}

// Judge assesses answer and flags it when the score falls under the survey's
// quality threshold. Fallback verdicts are never flagged.
func (p *ValidationPolicy) Judge(ctx context.Context, q model.Question, answer interface{}, cfg model.ValidationConfig) model.QuestionVerdict {
	verdict, fallback := p.Assess(ctx, q, answer)
	return model.QuestionVerdict{
		QuestionID: q.ID,
		Verdict:    verdict,
		Fallback:   fallback,
		LowQuality: !fallback && belowThreshold(verdict, cfg.QualityThreshold),
	}
}

// belowThreshold compares the 0-10 quality score against a 0-1 threshold
func belowThreshold(v model.QualityVerdict, threshold float64) bool {
	return threshold > 0 && v.QualityScore/10 < threshold
}
