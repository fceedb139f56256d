package model

import "time"

// AnswerEntry is one answered question in a respondent session
type AnswerEntry struct {
	QuestionID string      `json:"questionId" bson:"questionId"`
	Value      interface{} `json:"value" bson:"value"`
	AnsweredAt time.Time   `json:"answeredAt" bson:"answeredAt"`
}

// AnswerHistory is the ordered, append-only answer log of a session
type AnswerHistory []AnswerEntry

// Append returns a new history with entry added. The receiver is never modified.
func (h AnswerHistory) Append(entry AnswerEntry) AnswerHistory {
	out := make(AnswerHistory, len(h), len(h)+1)
	copy(out, h)
	return append(out, entry)
}

// Last returns the most recent entry
func (h AnswerHistory) Last() (AnswerEntry, bool) {
	if len(h) == 0 {
		return AnswerEntry{}, false
	}
	return h[len(h)-1], true
}

// Answered reports whether questionID has an entry
func (h AnswerHistory) Answered(questionID string) bool {
	for _, e := range h {
		if e.QuestionID == questionID {
			return true
		}
	}
	return false
}

// AnsweredSet returns the ids of every answered question
func (h AnswerHistory) AnsweredSet() map[string]bool {
	out := make(map[string]bool, len(h))
	for _, e := range h {
		out[e.QuestionID] = true
	}
	return out
}

// Tail returns the last n entries (or all of them when n exceeds the length)
func (h AnswerHistory) Tail(n int) AnswerHistory {
	if n <= 0 || n >= len(h) {
		return h
	}
	return h[len(h)-n:]
}

type ResponseStatus string

const (
	ResponseInProgress ResponseStatus = "in_progress"
	ResponseCompleted  ResponseStatus = "completed"
	ResponseTerminated ResponseStatus = "terminated"
)

// Response is the persisted record of one respondent session
type Response struct {
	ID                string            `json:"id" bson:"_id,omitempty"`
	SessionID         string            `json:"sessionId" bson:"sessionId"`
	SurveyID          string            `json:"surveyId" bson:"surveyId"`
	SurveyVersion     int64             `json:"surveyVersion" bson:"surveyVersion"`
	Answers           AnswerHistory     `json:"answers" bson:"answers"`
	Skipped           []string          `json:"skipped,omitempty" bson:"skipped,omitempty"`
	Verdicts          []QuestionVerdict `json:"verdicts,omitempty" bson:"verdicts,omitempty"`
	Status            ResponseStatus    `json:"status" bson:"status"`
	TerminationReason string            `json:"terminationReason,omitempty" bson:"terminationReason,omitempty"`
	StartedAt         time.Time         `json:"startedAt" bson:"startedAt"`
	FinishedAt        *time.Time        `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
}
