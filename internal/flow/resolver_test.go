package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsurvey/internal/model"
)

func answers(pairs ...interface{}) model.AnswerHistory {
	var h model.AnswerHistory
	for i := 0; i+1 < len(pairs); i += 2 {
		h = h.Append(model.AnswerEntry{QuestionID: pairs[i].(string), Value: pairs[i+1]})
	}
	return h
}

func mustBuild(t *testing.T, s *model.Survey) *Graph {
	t.Helper()
	g, err := Build(s)
	require.NoError(t, err)
	return g
}

func TestResolver_SequentialWithoutRules(t *testing.T) {
	g := mustBuild(t, threeQuestions())
	r := NewResolver(nil)

	assert.Equal(t, State{Kind: AwaitingAnswer, QuestionID: "Q1"}, r.Next(g, nil))
	assert.Equal(t, State{Kind: AwaitingAnswer, QuestionID: "Q2"}, r.Next(g, answers("Q1", false)))
	assert.Equal(t, State{Kind: AwaitingAnswer, QuestionID: "Q3"}, r.Next(g, answers("Q1", false, "Q2", "a")))
	assert.Equal(t, State{Kind: Completed}, r.Next(g, answers("Q1", false, "Q2", "a", "Q3", "b")))
}

func TestResolver_SkipToBypassesIntermediate(t *testing.T) {
	g := mustBuild(t, threeQuestions(rule("Q1", cond(model.OpEquals, true), model.ActionSkipTo, "Q3")))
	r := NewResolver(nil)

	h := answers("Q1", true)
	st := r.Next(g, h)
	assert.Equal(t, AwaitingAnswer, st.Kind)
	assert.Equal(t, "Q3", st.QuestionID)
	assert.True(t, st.Redirected)
	assert.Equal(t, []string{"Q2"}, st.Skipped)

	h = h.Append(model.AnswerEntry{QuestionID: "Q3", Value: "done"})
	assert.Equal(t, Completed, r.Next(g, h).Kind)
	assert.False(t, h.Answered("Q2"))

	st = r.Next(g, answers("Q1", false))
	assert.Equal(t, "Q2", st.QuestionID, "rule does not fire on false")
}

func TestResolver_EndSurveyBeatsSkipTo(t *testing.T) {
	s := threeQuestions(
		rule("Q1", cond(model.OpEquals, true), model.ActionSkipTo, "Q3"),
		rule("Q1", cond(model.OpEquals, true), model.ActionEndSurvey, ""),
	)
	g := mustBuild(t, s)

	st := NewResolver(nil).Next(g, answers("Q1", true))
	assert.Equal(t, Terminated, st.Kind)
	assert.Empty(t, st.QuestionID)
	assert.Contains(t, st.Reason, "end_survey rule 1")
}

func TestResolver_FirstSkipWins(t *testing.T) {
	s := &model.Survey{
		ID: "s",
		Questions: []model.Question{
			q("A", 1, model.QuestionTypeNumber), q("B", 2, model.QuestionTypeText),
			q("C", 3, model.QuestionTypeText), q("D", 4, model.QuestionTypeText),
		},
		Rules: []model.ConditionalRule{
			rule("A", cond(model.OpGreaterThan, 5), model.ActionSkipTo, "D"),
			rule("A", cond(model.OpGreaterThan, 1), model.ActionSkipTo, "C"),
		},
	}
	g := mustBuild(t, s)
	r := NewResolver(nil)

	assert.Equal(t, "D", r.Next(g, answers("A", 9)).QuestionID)
	assert.Equal(t, "C", r.Next(g, answers("A", 3)).QuestionID)
	assert.Equal(t, "B", r.Next(g, answers("A", 0)).QuestionID)
}

func TestResolver_ShowAndHide(t *testing.T) {
	s := &model.Survey{
		ID: "s",
		Questions: []model.Question{
			q("Q1", 1, model.QuestionTypeBoolean), q("Q2", 2, model.QuestionTypeText),
			q("Q3", 3, model.QuestionTypeText), q("Q4", 4, model.QuestionTypeText),
		},
		Rules: []model.ConditionalRule{
			rule("Q1", cond(model.OpEquals, true), model.ActionShowQuestion, "Q3"),
			rule("Q1", cond(model.OpEquals, true), model.ActionHideQuestion, "Q2"),
		},
	}
	g := mustBuild(t, s)
	r := NewResolver(nil)

	assert.True(t, g.HiddenAtStart("Q3"))
	assert.Equal(t, "Q3", r.Next(g, answers("Q1", true)).QuestionID)

	st := r.Next(g, answers("Q1", false))
	assert.Equal(t, "Q2", st.QuestionID)
	st = r.Next(g, answers("Q1", false, "Q2", "x"))
	assert.Equal(t, "Q4", st.QuestionID, "Q3 stays hidden when the show rule never fired")
}

func TestResolver_LaterAnswerOverridesVisibility(t *testing.T) {
	s := &model.Survey{
		ID: "s",
		Questions: []model.Question{
			q("Q1", 1, model.QuestionTypeBoolean), q("Q2", 2, model.QuestionTypeBoolean),
			q("Q3", 3, model.QuestionTypeText), q("Q4", 4, model.QuestionTypeText),
		},
		Rules: []model.ConditionalRule{
			rule("Q1", cond(model.OpEquals, true), model.ActionHideQuestion, "Q4"),
			rule("Q2", cond(model.OpEquals, true), model.ActionShowQuestion, "Q4"),
		},
	}
	g := mustBuild(t, s)
	r := NewResolver(nil)

	assert.Equal(t, Completed, r.Next(g, answers("Q1", true, "Q2", false, "Q3", "x")).Kind)
	assert.Equal(t, "Q4", r.Next(g, answers("Q1", true, "Q2", true, "Q3", "x")).QuestionID)
}

func TestResolver_DegradesOnBadRules(t *testing.T) {
	s := threeQuestions(
		rule("Q1", cond(model.OpGreaterThan, 2), model.ActionEndSurvey, ""),
		rule("Q1", cond(model.OpEquals, true), model.ActionSkipTo, "Q9"),
		rule("Q2", cond(model.OpEquals, "x"), model.ActionHideQuestion, "Q8"),
	)
	g, err := BuildLenient(s)
	require.NoError(t, err)
	require.Len(t, g.Warnings(), 2)
	r := NewResolver(nil)

	st := r.Next(g, answers("Q1", true))
	assert.Equal(t, State{Kind: AwaitingAnswer, QuestionID: "Q2"}, st, "type mismatch and dangling target fall back to ordinal order")
	assert.Equal(t, "Q3", r.Next(g, answers("Q1", true, "Q2", "x")).QuestionID)
}

func TestResolver_Idempotent(t *testing.T) {
	s := threeQuestions(
		rule("Q1", cond(model.OpEquals, true), model.ActionSkipTo, "Q3"),
		rule("Q2", cond(model.OpContains, "stop"), model.ActionEndSurvey, ""),
	)
	g := mustBuild(t, s)
	r := NewResolver(nil)

	histories := []model.AnswerHistory{
		nil,
		answers("Q1", true),
		answers("Q1", false),
		answers("Q1", false, "Q2", "please stop"),
	}
	for _, h := range histories {
		assert.Equal(t, r.Next(g, h), r.Next(g, h))
	}
}

func TestResolver_TerminatesWithinBound(t *testing.T) {
	s := &model.Survey{ID: "s"}
	for i, id := range []string{"A", "B", "C", "D", "E", "F"} {
		s.Questions = append(s.Questions, q(id, i+1, model.QuestionTypeNumber))
	}
	s.Rules = []model.ConditionalRule{
		rule("A", cond(model.OpGreaterThan, 0), model.ActionSkipTo, "C"),
		rule("C", cond(model.OpLessThan, 0), model.ActionShowQuestion, "D"),
		rule("D", cond(model.OpEquals, 1), model.ActionSkipTo, "F"),
	}
	g := mustBuild(t, s)
	follow := model.Question{ID: "C.f1", Type: model.QuestionTypeText, Provenance: model.ProvenanceAIGenerated}
	g, err := g.WithInsertions("C", []model.Question{follow})
	require.NoError(t, err)
	r := NewResolver(nil)

	for _, v := range []interface{}{-1, 0, 1, 5, "x"} {
		var h model.AnswerHistory
		st := r.Next(g, h)
		steps := 0
		for st.Kind == AwaitingAnswer {
			steps++
			require.LessOrEqual(t, steps, g.Len(), "resolution must terminate")
			require.False(t, h.Answered(st.QuestionID), "answered questions are never presented again")
			h = h.Append(model.AnswerEntry{QuestionID: st.QuestionID, Value: v})
			st = r.Next(g, h)
		}
		assert.Equal(t, Completed, st.Kind)
	}
}
