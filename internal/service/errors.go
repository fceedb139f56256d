package service

import (
	"errors"

	"smartsurvey/internal/repository"
)

var (
	ErrSurveyNotFound     = errors.New("survey not found")
	ErrSurveyNotPublished = errors.New("survey is not published")
	ErrSurveyDeleted      = errors.New("survey has been deleted")
	ErrVersionConflict    = repository.ErrVersionConflict
	ErrForbidden          = errors.New("survey belongs to another host")
	ErrInvalidSurvey      = errors.New("invalid survey")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrQuestionLocked     = errors.New("question is referenced by recorded answers")
	ErrGenerationDisabled = errors.New("question generation is disabled for this survey")

	ErrSurveyNotOpen        = errors.New("survey is not open yet")
	ErrSurveyExpired        = errors.New("survey has expired")
	ErrResponseLimitReached = errors.New("survey has reached its response limit")

	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionFinished    = errors.New("session already finished")
	ErrSessionTimedOut    = errors.New("session time limit exceeded")
	ErrNotCurrentQuestion = errors.New("answer is not for the current question")
	ErrInvalidAnswer      = errors.New("invalid answer")
)
