package model

import "time"

type SessionStatus string

const (
	SessionAwaitingAnswer SessionStatus = "awaiting_answer"
	SessionCompleted      SessionStatus = "completed"
	SessionTerminated     SessionStatus = "terminated"
)

// ReasonTimeLimit terminates a session that outlived the survey's time limit
const ReasonTimeLimit = "time_limit_exceeded"

// Insertion records adaptive questions grafted after a given question.
// Replaying the insertions in order over the base graph rebuilds the session view.
type Insertion struct {
	AfterQuestionID string     `json:"afterQuestionId"`
	Questions       []Question `json:"questions"`
}

// SessionState is the Redis-held progress of one respondent session
type SessionState struct {
	SessionID         string        `json:"sessionId"`
	SurveyID          string        `json:"surveyId"`
	SurveyVersion     int64         `json:"surveyVersion"`
	Status            SessionStatus `json:"status"`
	CurrentQuestionID string        `json:"currentQuestionId,omitempty"`
	TerminationReason string        `json:"terminationReason,omitempty"`
	History           AnswerHistory `json:"history"`
	Skipped           []string      `json:"skipped,omitempty"`
	Insertions        []Insertion   `json:"insertions,omitempty"`
	StartedAt         time.Time     `json:"startedAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// InsertedCount is how many adaptive questions have been grafted so far
func (s *SessionState) InsertedCount() int {
	n := 0
	for _, ins := range s.Insertions {
		n += len(ins.Questions)
	}
	return n
}

// Finished reports whether the session reached a terminal state
func (s *SessionState) Finished() bool {
	return s.Status == SessionCompleted || s.Status == SessionTerminated
}
