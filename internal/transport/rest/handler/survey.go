package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/model"
	"smartsurvey/internal/service"
	"smartsurvey/internal/transport/rest/middleware"
)

// SurveyHandler handles survey authoring endpoints
type SurveyHandler struct {
	surveySvc *service.SurveyService
}

// NewSurveyHandler creates a new survey handler
func NewSurveyHandler(surveySvc *service.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveySvc: surveySvc}
}

// SurveyRequest is the request body for creating or replacing a survey
type SurveyRequest struct {
	Title          string                  `json:"title" validate:"required,max=300"`
	Description    string                  `json:"description" validate:"max=5000"`
	Category       string                  `json:"category"`
	TargetAudience string                  `json:"targetAudience"`
	Language       string                  `json:"language" validate:"omitempty,max=35"`
	Questions      []model.Question        `json:"questions"`
	Rules          []model.ConditionalRule `json:"conditionalLogic"`
	AI             *model.AIConfiguration  `json:"aiConfiguration"`
	Settings       model.SurveySettings    `json:"settings"`
}

func (req *SurveyRequest) survey() *model.Survey {
	s := &model.Survey{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		TargetAudience: req.TargetAudience,
		Language:       req.Language,
		Questions:      req.Questions,
		Rules:          req.Rules,
		Settings:       req.Settings,
	}
	if req.AI != nil {
		s.AI = *req.AI
	}
	return s
}

// StatusRequest is the request body for changing a survey's status
type StatusRequest struct {
	Status model.SurveyStatus `json:"status" validate:"required,oneof=draft published paused archived"`
}

// ReorderRequest lists every question id in the new order
type ReorderRequest struct {
	QuestionIDs []string `json:"questionIds" validate:"required,min=1,dive,required"`
}

// GenerateRequest asks the AI for candidate questions
type GenerateRequest struct {
	Prompts        []string `json:"prompts" validate:"max=10"`
	Category       string   `json:"category"`
	TargetAudience string   `json:"targetAudience"`
	Language       string   `json:"language"`
	Count          int      `json:"count" validate:"min=0,max=50"`
}

func hostID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.GetHostID(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return id, true
}

func version(w http.ResponseWriter, r *http.Request) (int64, bool) {
	v, ok := expectedVersion(r)
	if !ok {
		writeError(w, http.StatusPreconditionRequired, "survey version required (If-Match header or version query)")
	}
	return v, ok
}

// Create handles POST /v1/surveys
func (h *SurveyHandler) Create(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}

	var req SurveyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	survey := req.survey()
	if err := h.surveySvc.Create(r.Context(), host, survey); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, survey)
}

// List handles GET /v1/surveys
func (h *SurveyHandler) List(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}

	surveys, err := h.surveySvc.List(r.Context(), host)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"surveys": surveys})
}

// Get handles GET /v1/surveys/{surveyId}
func (h *SurveyHandler) Get(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}

	survey, err := h.surveySvc.Get(r.Context(), host, mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// Update handles PUT /v1/surveys/{surveyId}
func (h *SurveyHandler) Update(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}
	expected, ok := version(w, r)
	if !ok {
		return
	}

	var req SurveyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := req.survey()
	in.ID = mux.Vars(r)["surveyId"]
	survey, err := h.surveySvc.Update(r.Context(), host, in, expected)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// Delete handles DELETE /v1/surveys/{surveyId}
func (h *SurveyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}

	res, err := h.surveySvc.Delete(r.Context(), host, mux.Vars(r)["surveyId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	deletion := "hard"
	if res.Soft {
		deletion = "soft"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"responseCount": res.ResponseCount,
		"deletionType":  deletion,
	})
}

// Publish handles POST /v1/surveys/{surveyId}/publish
func (h *SurveyHandler) Publish(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}
	expected, ok := version(w, r)
	if !ok {
		return
	}

	survey, err := h.surveySvc.Publish(r.Context(), host, mux.Vars(r)["surveyId"], expected)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// SetStatus handles PUT /v1/surveys/{surveyId}/status
func (h *SurveyHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}
	expected, ok := version(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	survey, err := h.surveySvc.SetStatus(r.Context(), host, mux.Vars(r)["surveyId"], req.Status, expected)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// DeleteQuestion handles DELETE /v1/surveys/{surveyId}/questions/{questionId}
func (h *SurveyHandler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}
	expected, ok := version(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	survey, err := h.surveySvc.DeleteQuestion(r.Context(), host, vars["surveyId"], vars["questionId"], expected)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// Reorder handles PUT /v1/surveys/{surveyId}/questions/order
func (h *SurveyHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}
	expected, ok := version(w, r)
	if !ok {
		return
	}

	var req ReorderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	survey, err := h.surveySvc.ReorderQuestions(r.Context(), host, mux.Vars(r)["surveyId"], req.QuestionIDs, expected)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, survey)
}

// AddRule handles POST /v1/surveys/{surveyId}/rules
func (h *SurveyHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}
	expected, ok := version(w, r)
	if !ok {
		return
	}

	var rule model.ConditionalRule
	if err := decode(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	survey, err := h.surveySvc.AddRule(r.Context(), host, mux.Vars(r)["surveyId"], rule, expected)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, survey)
}

// Generate handles POST /v1/surveys/{surveyId}/generate
func (h *SurveyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	questions, err := h.surveySvc.GenerateQuestions(r.Context(), host, mux.Vars(r)["surveyId"], ai.GenerationRequest{
		Prompts:        req.Prompts,
		Category:       req.Category,
		TargetAudience: req.TargetAudience,
		Language:       req.Language,
		Count:          req.Count,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"questions": questions})
}

// Responses handles GET /v1/surveys/{surveyId}/responses?limit=
func (h *SurveyHandler) Responses(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}

	responses, err := h.surveySvc.Responses(r.Context(), host, mux.Vars(r)["surveyId"], int64(queryInt(r, "limit", 100)))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"responses": responses})
}

// Live handles GET /v1/surveys/{surveyId}/live?limit=
func (h *SurveyHandler) Live(w http.ResponseWriter, r *http.Request) {
	host, ok := hostID(w, r)
	if !ok {
		return
	}

	live, err := h.surveySvc.Live(r.Context(), host, mux.Vars(r)["surveyId"], queryInt(r, "limit", 20))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, live)
}
