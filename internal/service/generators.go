package service

import (
	"context"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/model"
)

// QuestionGenerator is the AI side of question authoring and adaptive follow-ups
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, req ai.GenerationRequest) ([]model.Question, error)
	GenerateFollowUps(ctx context.Context, req ai.FollowUpRequest) ([]model.Question, error)
}

// ResponseValidator is the AI side of answer quality scoring
type ResponseValidator interface {
	ValidateResponse(ctx context.Context, req ai.ValidationRequest) (model.QualityVerdict, error)
}
