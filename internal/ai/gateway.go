package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"smartsurvey/internal/config"
	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
)

var gatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "survey_ai_gateway_calls_total",
	Help: "AI gateway calls by operation and outcome.",
}, []string{"op", "outcome"})

const (
	OpGenerate = "generate_questions"
	OpFollowUp = "generate_followups"
	OpValidate = "validate_response"

	defaultConfidence = 0.8
	maxQuestionCount  = 50
)

type sampling struct {
	temperature float32
	maxTokens   int
}

var opSampling = map[string]sampling{
	OpGenerate: {temperature: 0.7, maxTokens: 2000},
	OpValidate: {temperature: 0.3, maxTokens: 500},
	OpFollowUp: {temperature: 0.8, maxTokens: 1000},
}

// GenerationRequest asks for new questions while authoring a survey
type GenerationRequest struct {
	Prompts        []string `json:"prompts"`
	Category       string   `json:"category"`
	TargetAudience string   `json:"targetAudience"`
	Language       string   `json:"language"`
	Count          int      `json:"count"`
}

func (r GenerationRequest) count() int {
	switch {
	case r.Count <= 0:
		return 10
	case r.Count > maxQuestionCount:
		return maxQuestionCount
	}
	return r.Count
}

func (r GenerationRequest) language() string {
	if r.Language == "" {
		return "en"
	}
	return r.Language
}

// AnsweredQuestion pairs a prior answer with the question text it answered
type AnsweredQuestion struct {
	QuestionID string      `json:"questionId"`
	Text       string      `json:"text"`
	Answer     interface{} `json:"answer"`
}

// FollowUpRequest asks for adaptive follow-ups to the question just answered
type FollowUpRequest struct {
	SurveyID    string             `json:"surveyId"`
	SurveyTitle string             `json:"surveyTitle"`
	Category    string             `json:"category"`
	Language    string             `json:"language"`
	Current     model.Question     `json:"current"`
	Recent      []AnsweredQuestion `json:"recent"`
	Max         int                `json:"max"`
}

func (r FollowUpRequest) max() int {
	switch {
	case r.Max <= 0:
		return 1
	case r.Max > 3:
		return 3
	}
	return r.Max
}

func (r FollowUpRequest) language() string {
	if r.Language == "" {
		return "en"
	}
	return r.Language
}

// ValidationRequest asks for a quality verdict on one answer
type ValidationRequest struct {
	Question model.Question `json:"question"`
	Answer   interface{}    `json:"answer"`
}

// Gateway is the single entry point for AI calls. Every call is bounded by the
// configured timeout and every payload is schema checked before it is trusted.
type Gateway struct {
	provider Provider
	timeout  time.Duration
	models   config.AIModels
	validate *validator.Validate
	log      *logger.Logger
}

func NewGateway(cfg *config.AIConfig, provider Provider, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		provider: provider,
		timeout:  timeout,
		models:   cfg.Models,
		validate: validator.New(),
		log:      log,
	}
}

// GenerateQuestions authors new questions. The result is ordered and every
// question is marked AI-generated with a confidence score.
func (g *Gateway) GenerateQuestions(ctx context.Context, req GenerationRequest) ([]model.Question, error) {
	raw, err := g.complete(ctx, OpGenerate, g.models.Generation, systemQuestionDesign, buildGenerationPrompt(req))
	if err != nil {
		return nil, err
	}
	qs, err := g.parseQuestions(raw)
	if err != nil {
		gatewayCalls.WithLabelValues(OpGenerate, "invalid").Inc()
		return nil, upstream(OpGenerate, err)
	}
	gatewayCalls.WithLabelValues(OpGenerate, "ok").Inc()
	return qs, nil
}

// GenerateFollowUps asks for adaptive questions that build on the answer just given
func (g *Gateway) GenerateFollowUps(ctx context.Context, req FollowUpRequest) ([]model.Question, error) {
	raw, err := g.complete(ctx, OpFollowUp, g.models.Adaptive, systemQuestionDesign, buildFollowUpPrompt(req))
	if err != nil {
		return nil, err
	}
	qs, err := g.parseQuestions(raw)
	if err != nil {
		gatewayCalls.WithLabelValues(OpFollowUp, "invalid").Inc()
		return nil, upstream(OpFollowUp, err)
	}
	for i := range qs {
		qs[i].ParentID = req.Current.ID
	}
	gatewayCalls.WithLabelValues(OpFollowUp, "ok").Inc()
	return qs, nil
}

// ValidateResponse scores one answer
func (g *Gateway) ValidateResponse(ctx context.Context, req ValidationRequest) (model.QualityVerdict, error) {
	raw, err := g.complete(ctx, OpValidate, g.models.Validation, systemResponseReview, buildValidationPrompt(req))
	if err != nil {
		return model.QualityVerdict{}, err
	}
	v, err := g.parseVerdict(raw)
	if err != nil {
		gatewayCalls.WithLabelValues(OpValidate, "invalid").Inc()
		return model.QualityVerdict{}, upstream(OpValidate, err)
	}
	gatewayCalls.WithLabelValues(OpValidate, "ok").Inc()
	return v, nil
}

func (g *Gateway) complete(ctx context.Context, op, modelName, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	s := opSampling[op]
	start := time.Now()
	raw, err := g.provider.Complete(ctx, CompletionRequest{
		Model:       modelName,
		System:      system,
		Prompt:      prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		gatewayCalls.WithLabelValues(op, outcome).Inc()
		g.log.Debug("ai call failed", "op", op, "provider", g.provider.Name(), "model", modelName,
			"outcome", outcome, "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return "", upstream(op, err)
	}
	g.log.Debug("ai call completed", "op", op, "provider", g.provider.Name(), "model", modelName,
		"elapsed_ms", time.Since(start).Milliseconds())
	return raw, nil
}

type generatedQuestion struct {
	Type        string                `json:"type" validate:"required,oneof=text multiple_choice rating number date boolean dropdown matrix"`
	Text        string                `json:"text" validate:"required,max=1000"`
	Description string                `json:"description" validate:"max=2000"`
	Required    bool                  `json:"required"`
	Options     []string              `json:"options" validate:"omitempty,max=50,dive,required"`
	Validation  model.ValidationRules `json:"validation"`
	Confidence  *float64              `json:"confidence" validate:"omitempty,gte=0,lte=1"`
}

type generationPayload struct {
	Questions []generatedQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (g *Gateway) parseQuestions(raw string) ([]model.Question, error) {
	body := stripCodeFence(raw)

	var payload generationPayload
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &payload.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	} else if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if err := g.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("question schema: %w", err)
	}

	out := make([]model.Question, 0, len(payload.Questions))
	for i, gq := range payload.Questions {
		typ := model.QuestionType(gq.Type)
		if typ.HasOptions() && len(gq.Options) == 0 {
			return nil, fmt.Errorf("question schema: %s question %d has no options", typ, i)
		}
		confidence := defaultConfidence
		if gq.Confidence != nil {
			confidence = *gq.Confidence
		}
		out = append(out, model.Question{
			Type:        typ,
			Text:        strings.TrimSpace(gq.Text),
			Description: gq.Description,
			Order:       i + 1,
			Required:    gq.Required,
			Options:     gq.Options,
			Validation:  gq.Validation,
			Provenance:  model.ProvenanceAIGenerated,
			Confidence:  &confidence,
		})
	}
	return out, nil
}

type verdictPayload struct {
	IsValid      *bool    `json:"isValid" validate:"required"`
	Confidence   *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	Issues       []string `json:"issues"`
	Suggestions  []string `json:"suggestions"`
	QualityScore *float64 `json:"qualityScore" validate:"omitempty,gte=0,lte=10"`
	// some models answer in snake case
	QualityScoreAlt *float64 `json:"quality_score" validate:"omitempty,gte=0,lte=10"`
}

func (g *Gateway) parseVerdict(raw string) (model.QualityVerdict, error) {
	var p verdictPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &p); err != nil {
		return model.QualityVerdict{}, fmt.Errorf("decode verdict: %w", err)
	}
	if err := g.validate.Struct(p); err != nil {
		return model.QualityVerdict{}, fmt.Errorf("verdict schema: %w", err)
	}
	score := p.QualityScore
	if score == nil {
		score = p.QualityScoreAlt
	}
	if score == nil {
		return model.QualityVerdict{}, errors.New("verdict schema: qualityScore is required")
	}
	issues := p.Issues
	if issues == nil {
		issues = []string{}
	}
	return model.QualityVerdict{
		IsValid:      *p.IsValid,
		Confidence:   *p.Confidence,
		Issues:       issues,
		Suggestions:  p.Suggestions,
		QualityScore: *score,
	}, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON output
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
