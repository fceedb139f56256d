package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"smartsurvey/internal/service"
)

// SessionHandler serves anonymous respondents taking a survey
type SessionHandler struct {
	surveySvc  *service.SurveyService
	sessionSvc *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(surveySvc *service.SurveyService, sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{
		surveySvc:  surveySvc,
		sessionSvc: sessionSvc,
	}
}

// SubmitAnswerRequest is the request body for answering the current question
type SubmitAnswerRequest struct {
	QuestionID string      `json:"questionId" validate:"required"`
	Value      interface{} `json:"value"`
}

// PublicSurvey is what respondents see before starting
type PublicSurvey struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
	Questions   int    `json:"questions"`
}

// GetSurvey handles GET /v1/public/surveys/{surveyId}
func (h *SessionHandler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := h.surveySvc.GetPublished(r.Context(), mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PublicSurvey{
		ID:          survey.ID,
		Title:       survey.Title,
		Description: survey.Description,
		Language:    survey.Language,
		Questions:   len(survey.Questions),
	})
}

// Start handles POST /v1/public/surveys/{surveyId}/sessions
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessionSvc.Start(r.Context(), mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// Current handles GET /v1/sessions/{sessionId}
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessionSvc.Current(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// SubmitAnswer handles POST /v1/sessions/{sessionId}/answers
func (h *SessionHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.sessionSvc.Submit(r.Context(), mux.Vars(r)["sessionId"], req.QuestionID, req.Value)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
