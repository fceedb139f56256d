package flow

import (
	"context"
	"time"
)

type EventType string

const (
	EventQuestionChanged  EventType = "question_changed"
	EventSurveyCompleted  EventType = "survey_completed"
	EventSurveyTerminated EventType = "survey_terminated"
)

// Event is a session progress notification relayed to observers
type Event struct {
	Type       EventType `json:"type"`
	SurveyID   string    `json:"surveyId"`
	SessionID  string    `json:"sessionId"`
	QuestionID string    `json:"questionId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Answered   int       `json:"answered"`
	At         time.Time `json:"at"`
}

// Publisher relays progress events. Implementations must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// EventFor maps a resolved state to the progress event observers receive
func EventFor(st State) EventType {
	switch st.Kind {
	case Completed:
		return EventSurveyCompleted
	case Terminated:
		return EventSurveyTerminated
	default:
		return EventQuestionChanged
	}
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
