package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsurvey/internal/model"
)

func q(id string, order int, typ model.QuestionType) model.Question {
	return model.Question{ID: id, Type: typ, Text: id, Order: order, Provenance: model.ProvenanceAuthored}
}

func rule(src string, c model.Condition, action model.ActionType, target string) model.ConditionalRule {
	return model.ConditionalRule{
		SourceQuestionID: src,
		Condition:        c,
		Action:           model.Action{Type: action, TargetQuestionID: target},
	}
}

func threeQuestions(rules ...model.ConditionalRule) *model.Survey {
	return &model.Survey{
		ID:      "s1",
		Version: 1,
		Questions: []model.Question{
			q("Q1", 1, model.QuestionTypeBoolean),
			q("Q2", 2, model.QuestionTypeText),
			q("Q3", 3, model.QuestionTypeText),
		},
		Rules: rules,
	}
}

func TestBuild_OrdersByOrdinal(t *testing.T) {
	s := threeQuestions()
	s.Questions[0].Order, s.Questions[2].Order = 3, 1

	g, err := Build(s)
	require.NoError(t, err)
	ids := []string{}
	for _, qq := range g.Questions() {
		ids = append(ids, qq.ID)
	}
	assert.Equal(t, []string{"Q3", "Q2", "Q1"}, ids)
	assert.Equal(t, "Q1", s.Questions[0].ID, "input survey is not reordered")
}

func TestBuild_RejectsBackwardSkipAsCycle(t *testing.T) {
	s := threeQuestions(rule("Q3", cond(model.OpEquals, "again"), model.ActionSkipTo, "Q1"))

	_, err := Build(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycleDetected))

	var ce *CycleError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Q1", ce.Path[0])
	assert.Equal(t, "Q1", ce.Path[len(ce.Path)-1])
}

func TestBuild_RejectsSelfSkip(t *testing.T) {
	s := threeQuestions(rule("Q2", cond(model.OpEquals, "x"), model.ActionSkipTo, "Q2"))

	_, err := BuildLenient(s)
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestBuild_ForwardSkipIsAcyclic(t *testing.T) {
	s := threeQuestions(rule("Q1", cond(model.OpEquals, true), model.ActionSkipTo, "Q3"))

	g, err := Build(s)
	require.NoError(t, err)
	require.Len(t, g.RulesFor("Q1"), 1)
	assert.Empty(t, g.RulesFor("Q2"))
}

func TestBuild_DanglingReference(t *testing.T) {
	s := threeQuestions(rule("Q1", cond(model.OpEquals, true), model.ActionSkipTo, "Q9"))

	_, err := Build(s)
	require.Error(t, err)
	var rce *RuleConfigurationError
	require.True(t, errors.As(err, &rce))
	assert.Equal(t, "Q1", rce.SourceQuestionID)
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	g, err := BuildLenient(s)
	require.NoError(t, err)
	assert.Len(t, g.Warnings(), 1)
}

func TestBuild_StrictChecksQuestions(t *testing.T) {
	s := threeQuestions()
	s.Questions[1].Type = "slider"
	s.Questions[2].Type = model.QuestionTypeDropdown

	_, err := Build(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.Contains(t, err.Error(), "slider")
	assert.Contains(t, err.Error(), "needs options")

	_, err = Build(&model.Survey{ID: "empty"})
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestBuild_DuplicateIDs(t *testing.T) {
	s := threeQuestions()
	s.Questions[2].ID = "Q1"

	_, err := BuildLenient(s)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestBuild_MalformedRules(t *testing.T) {
	s := threeQuestions(
		rule("Q1", cond("like", "x"), model.ActionHideQuestion, "Q2"),
		rule("Q1", cond(model.OpEquals, true), model.ActionShowQuestion, ""),
		rule("Q1", model.Condition{Operator: model.OpIn, Value: 1}, model.ActionEndSurvey, ""),
	)

	_, err := Build(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operator")
	assert.Contains(t, err.Error(), "needs a target question")
	assert.Contains(t, err.Error(), "needs a value set")
}

func TestGraph_WithInsertionsIsCopyOnWrite(t *testing.T) {
	g, err := Build(threeQuestions())
	require.NoError(t, err)

	follow := model.Question{ID: "Q1.f1", Type: model.QuestionTypeText, Provenance: model.ProvenanceAIGenerated, ParentID: "Q1"}
	g2, err := g.WithInsertions("Q1", []model.Question{follow})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, 4, g2.Len())
	assert.Equal(t, 0, g.Revision())
	assert.Equal(t, 1, g2.Revision())

	pos, ok := g2.Position("Q1.f1")
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	_, ok = g.Position("Q1.f1")
	assert.False(t, ok)

	_, err = g2.WithInsertions("Q2", []model.Question{follow})
	assert.ErrorIs(t, err, ErrInvalidGraph)
	_, err = g2.WithInsertions("Q7", []model.Question{{ID: "x"}})
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}
