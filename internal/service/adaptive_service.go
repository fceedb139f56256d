package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/cache"
	"smartsurvey/internal/flow"
	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
)

var adaptiveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "survey_adaptive_insertions_total",
	Help: "Adaptive follow-up attempts, by outcome.",
}, []string{"outcome"})

const maxFollowUpsPerAnswer = 3

// AdaptiveInserter grafts AI follow-up questions after the question just
// answered. Every failure path leaves the graph untouched.
type AdaptiveInserter struct {
	generator QuestionGenerator
	cache     *cache.ResponseCache
	ttl       time.Duration
	log       *logger.Logger
}

func NewAdaptiveInserter(generator QuestionGenerator, rc *cache.ResponseCache, ttl time.Duration, log *logger.Logger) *AdaptiveInserter {
	if log == nil {
		log = logger.NewNop()
	}
	return &AdaptiveInserter{
		generator: generator,
		cache:     rc,
		ttl:       ttl,
		log:       log,
	}
}

type followUpKey struct {
	SurveyID string              `json:"surveyId"`
	Version  int64               `json:"version"`
	Answers  []model.AnswerEntry `json:"answers"`
}

// MaybeInsert returns the graph to resolve against after history's last answer.
// On success the new questions are also recorded on session.Insertions so the
// view can be rebuilt later; the returned bool reports whether that happened.
func (a *AdaptiveInserter) MaybeInsert(ctx context.Context, survey *model.Survey, session *model.SessionState, g *flow.Graph, history model.AnswerHistory) (*flow.Graph, bool) {
	cfg := survey.AI.AdaptiveQuestioning
	if !cfg.Enabled {
		return g, false
	}
	remaining := cfg.Cap() - session.InsertedCount()
	if remaining <= 0 {
		adaptiveOutcomes.WithLabelValues("cap_reached").Inc()
		return g, false
	}

	last, ok := history.Last()
	if !ok {
		return g, false
	}
	current, ok := g.Question(last.QuestionID)
	if !ok {
		return g, false
	}
	if current.IsAIGenerated() {
		adaptiveOutcomes.WithLabelValues("depth_limit").Inc()
		return g, false
	}

	log := a.log.With("survey_id", survey.ID, "session_id", session.SessionID, "question_id", current.ID)

	window := history.Tail(cfg.Window())
	key, err := cache.Key("adaptive", followUpKey{SurveyID: survey.ID, Version: g.Version(), Answers: stripTimes(window)})
	if err != nil {
		log.Warn("adaptive cache key failed", "error", err)
		adaptiveOutcomes.WithLabelValues("error").Inc()
		return g, false
	}

	req := ai.FollowUpRequest{
		SurveyID:    survey.ID,
		SurveyTitle: survey.Title,
		Category:    survey.Category,
		Language:    survey.Language,
		Current:     current,
		Recent:      recentAnswers(g, window),
		Max:         min(remaining, maxFollowUpsPerAnswer),
	}
	generated, err := cache.GetOrComputeJSON(ctx, a.cache, key, a.ttl, func(ctx context.Context) ([]model.Question, error) {
		return a.generator.GenerateFollowUps(ctx, req)
	})
	if err != nil {
		log.Warn("adaptive follow-up generation failed, continuing without insertion", "error", err)
		adaptiveOutcomes.WithLabelValues("error").Inc()
		return g, false
	}

	threshold := survey.AI.QuestionGeneration.ConfidenceThreshold
	accepted := make([]model.Question, 0, len(generated))
	for _, q := range generated {
		if q.Confidence != nil && *q.Confidence < threshold {
			continue
		}
		if !q.Type.Valid() || q.Text == "" {
			continue
		}
		accepted = append(accepted, q)
		if len(accepted) == remaining {
			break
		}
	}
	if len(accepted) == 0 {
		adaptiveOutcomes.WithLabelValues("empty").Inc()
		return g, false
	}

	n := 1
	for i := range accepted {
		for {
			id := fmt.Sprintf("%s.f%d", current.ID, n)
			n++
			if _, taken := g.Question(id); !taken {
				accepted[i].ID = id
				break
			}
		}
		accepted[i].ParentID = current.ID
		accepted[i].Provenance = model.ProvenanceAIGenerated
	}

	next, err := g.WithInsertions(current.ID, accepted)
	if err != nil {
		log.Warn("adaptive insertion rejected by graph", "error", err)
		adaptiveOutcomes.WithLabelValues("error").Inc()
		return g, false
	}

	session.Insertions = append(session.Insertions, model.Insertion{
		AfterQuestionID: current.ID,
		Questions:       accepted,
	})
	adaptiveOutcomes.WithLabelValues("inserted").Inc()
	log.Info("adaptive follow-ups inserted", "count", len(accepted), "revision", next.Revision())
	return next, true
}

// stripTimes keeps the cache key stable across respondents giving the same answers
func stripTimes(h model.AnswerHistory) []model.AnswerEntry {
	out := make([]model.AnswerEntry, len(h))
	for i, e := range h {
		out[i] = model.AnswerEntry{QuestionID: e.QuestionID, Value: e.Value}
	}
	return out
}

func recentAnswers(g *flow.Graph, h model.AnswerHistory) []ai.AnsweredQuestion {
	out := make([]ai.AnsweredQuestion, 0, len(h))
	for _, e := range h {
		aq := ai.AnsweredQuestion{QuestionID: e.QuestionID, Answer: e.Value}
		if q, ok := g.Question(e.QuestionID); ok {
			aq.Text = q.Text
		}
		out = append(out, aq)
	}
	return out
}
