package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/cache"
	"smartsurvey/internal/config"
	"smartsurvey/internal/flow"
	"smartsurvey/internal/model"
)

func adaptiveSurvey(capacity int) *model.Survey {
	s := publishedSurvey("s-adaptive")
	s.AI = model.DefaultAIConfiguration()
	s.AI.AdaptiveQuestioning = model.AdaptiveConfig{Enabled: true, MaxAdaptiveQuestions: capacity, HistoryWindow: 2}
	return s
}

func followUp(text string, conf float64) model.Question {
	return model.Question{Type: model.QuestionTypeText, Text: text, Confidence: confidence(conf), Provenance: model.ProvenanceAIGenerated}
}

func newInserter(gen QuestionGenerator) *AdaptiveInserter {
	return NewAdaptiveInserter(gen, cache.NewResponseCache(cache.NewMemoryStore(), nil), time.Hour, nil)
}

func TestMaybeInsert_GraftsAfterCurrentQuestion(t *testing.T) {
	s := adaptiveSurvey(3)
	g, err := flow.Build(s)
	require.NoError(t, err)
	gen := &fakeGenerator{followUps: []model.Question{followUp("Why not?", 0.9)}}
	session := &model.SessionState{SessionID: "sess-1"}

	h := model.AnswerHistory{}.Append(model.AnswerEntry{QuestionID: "Q1", Value: false})
	next, inserted := newInserter(gen).MaybeInsert(context.Background(), s, session, g, h)
	require.True(t, inserted)

	assert.Equal(t, 3, g.Len(), "base graph is never modified")
	assert.Equal(t, 4, next.Len())
	pos, ok := next.Position("Q1.f1")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	q, _ := next.Question("Q1.f1")
	assert.Equal(t, "Q1", q.ParentID)
	assert.True(t, q.IsAIGenerated())

	require.Len(t, session.Insertions, 1)
	assert.Equal(t, "Q1", session.Insertions[0].AfterQuestionID)
	assert.Equal(t, 1, session.InsertedCount())

	st := flow.NewResolver(nil).Next(next, h)
	assert.Equal(t, "Q1.f1", st.QuestionID)
	assert.Equal(t, 3, gen.lastReq.Max)
}

func TestMaybeInsert_CapOfOneAllowsOnlyFirstOpportunity(t *testing.T) {
	s := adaptiveSurvey(1)
	g, err := flow.Build(s)
	require.NoError(t, err)
	gen := &fakeGenerator{followUps: []model.Question{followUp("Tell us more", 0.95)}}
	ins := newInserter(gen)
	session := &model.SessionState{SessionID: "sess-cap"}

	h := model.AnswerHistory{}.Append(model.AnswerEntry{QuestionID: "Q1", Value: true})
	g1, inserted := ins.MaybeInsert(context.Background(), s, session, g, h)
	require.True(t, inserted)

	h = h.Append(model.AnswerEntry{QuestionID: "Q1.f1", Value: "details"})
	h = h.Append(model.AnswerEntry{QuestionID: "Q2", Value: "more"})
	g2, inserted := ins.MaybeInsert(context.Background(), s, session, g1, h)
	assert.False(t, inserted)
	assert.Same(t, g1, g2)
	assert.Equal(t, 1, session.InsertedCount())
	assert.Equal(t, 1, gen.callCount(), "no AI call once the cap is reached")
}

func TestMaybeInsert_TimeoutLeavesGraphUnchanged(t *testing.T) {
	s := adaptiveSurvey(3)
	g, err := flow.Build(s)
	require.NoError(t, err)

	cfg := &config.AIConfig{Provider: config.ProviderOpenAI, APIKey: "k", TimeoutMS: 20}
	gateway := ai.NewGateway(cfg, sleepyProvider{}, nil)
	session := &model.SessionState{SessionID: "sess-timeout"}

	h := model.AnswerHistory{}.Append(model.AnswerEntry{QuestionID: "Q1", Value: true})
	next, inserted := newInserter(gateway).MaybeInsert(context.Background(), s, session, g, h)
	assert.False(t, inserted)
	assert.Same(t, g, next)
	assert.Empty(t, session.Insertions)
}

func TestMaybeInsert_NoOps(t *testing.T) {
	h := model.AnswerHistory{}.Append(model.AnswerEntry{QuestionID: "Q1", Value: true})

	t.Run("disabled", func(t *testing.T) {
		s := adaptiveSurvey(3)
		s.AI.AdaptiveQuestioning.Enabled = false
		g, _ := flow.Build(s)
		gen := &fakeGenerator{followUps: []model.Question{followUp("x", 1)}}
		_, inserted := newInserter(gen).MaybeInsert(context.Background(), s, &model.SessionState{}, g, h)
		assert.False(t, inserted)
		assert.Zero(t, gen.callCount())
	})

	t.Run("upstream error", func(t *testing.T) {
		s := adaptiveSurvey(3)
		g, _ := flow.Build(s)
		gen := &fakeGenerator{err: &ai.UpstreamError{Op: ai.OpFollowUp, Err: context.DeadlineExceeded}}
		next, inserted := newInserter(gen).MaybeInsert(context.Background(), s, &model.SessionState{}, g, h)
		assert.False(t, inserted)
		assert.Same(t, g, next)
	})

	t.Run("below confidence threshold", func(t *testing.T) {
		s := adaptiveSurvey(3)
		g, _ := flow.Build(s)
		gen := &fakeGenerator{followUps: []model.Question{followUp("meh", 0.4)}}
		_, inserted := newInserter(gen).MaybeInsert(context.Background(), s, &model.SessionState{}, g, h)
		assert.False(t, inserted)
	})

	t.Run("ai generated question gets no follow-ups", func(t *testing.T) {
		s := adaptiveSurvey(3)
		g, _ := flow.Build(s)
		g, err := g.WithInsertions("Q1", []model.Question{{ID: "Q1.f1", Type: model.QuestionTypeText, Text: "x", Provenance: model.ProvenanceAIGenerated}})
		require.NoError(t, err)
		gen := &fakeGenerator{followUps: []model.Question{followUp("deeper", 1)}}
		hh := h.Append(model.AnswerEntry{QuestionID: "Q1.f1", Value: "y"})
		_, inserted := newInserter(gen).MaybeInsert(context.Background(), s, &model.SessionState{}, g, hh)
		assert.False(t, inserted)
		assert.Zero(t, gen.callCount())
	})
}

func TestMaybeInsert_TrimsToRemainingCapacityAndReusesCache(t *testing.T) {
	s := adaptiveSurvey(2)
	g, err := flow.Build(s)
	require.NoError(t, err)
	gen := &fakeGenerator{followUps: []model.Question{followUp("a", 0.9), followUp("b", 0.9), followUp("c", 0.9)}}
	ins := newInserter(gen)
	h := model.AnswerHistory{}.Append(model.AnswerEntry{QuestionID: "Q1", Value: true, AnsweredAt: time.Now()})

	first := &model.SessionState{SessionID: "a"}
	next, inserted := ins.MaybeInsert(context.Background(), s, first, g, h)
	require.True(t, inserted)
	assert.Equal(t, 5, next.Len())
	assert.Equal(t, 2, first.InsertedCount())

	// same answers from another respondent, later in time
	h2 := model.AnswerHistory{}.Append(model.AnswerEntry{QuestionID: "Q1", Value: true, AnsweredAt: time.Now().Add(time.Minute)})
	second := &model.SessionState{SessionID: "b"}
	_, inserted = ins.MaybeInsert(context.Background(), s, second, g, h2)
	require.True(t, inserted)
	assert.Equal(t, 1, gen.callCount())
}
