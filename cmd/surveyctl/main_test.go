package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsurvey/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadSurvey_FillsDefaults(t *testing.T) {
	survey, err := loadSurvey("testdata/onboarding.yaml")
	require.NoError(t, err)

	require.Len(t, survey.Questions, 5)
	for i, q := range survey.Questions {
		assert.Equal(t, i+1, q.Order)
		assert.Equal(t, model.ProvenanceAuthored, q.Provenance)
	}
	assert.Equal(t, "Q1", survey.Questions[0].ID)
	assert.Equal(t, "Q5", survey.Questions[4].ID)
	assert.Equal(t, []string{"Slack", "GitHub", "Jira", "None"}, survey.Questions[3].Options)
	assert.Equal(t, 2, survey.AI.AdaptiveQuestioning.MaxAdaptiveQuestions)
	assert.Equal(t, model.ActionSkipTo, survey.Rules[0].Action.Type)
}

func TestLoadSurvey_MergesPartialAIConfig(t *testing.T) {
	survey, err := loadSurvey("testdata/partial_ai.yaml")
	require.NoError(t, err)

	def := model.DefaultAIConfiguration()
	assert.Equal(t, def.QuestionGeneration, survey.AI.QuestionGeneration)
	assert.Equal(t, def.ResponseValidation, survey.AI.ResponseValidation)
	assert.True(t, survey.AI.AdaptiveQuestioning.Enabled)
	assert.Equal(t, model.DefaultMaxAdaptiveQuestions, survey.AI.AdaptiveQuestioning.MaxAdaptiveQuestions)
	assert.Equal(t, model.DefaultHistoryWindow, survey.AI.AdaptiveQuestioning.HistoryWindow)

	assert.Equal(t, 500, survey.Settings.MaxResponses)
	assert.Equal(t, 15, survey.Settings.TimeLimit)
	assert.True(t, survey.Questions[0].Required)
}

func TestValidate_AcceptsWellFormedSurvey(t *testing.T) {
	out, err := execute(t, "validate", "testdata/onboarding.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "OK   testdata/onboarding.yaml")
	assert.Contains(t, out, "5 questions, 2 rules")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	out, err := execute(t, "validate", "testdata/onboarding.yaml", "testdata/cycle.yaml")
	assert.ErrorIs(t, err, errInvalidFiles)
	assert.Contains(t, out, "OK   testdata/onboarding.yaml")
	assert.Contains(t, out, "FAIL testdata/cycle.yaml")
	assert.Contains(t, out, `unknown operator "sometimes"`)
	assert.Contains(t, out, "cycle")
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, "validate", "testdata/nope.yaml")
	assert.ErrorIs(t, err, errInvalidFiles)
	assert.Contains(t, out, "FAIL testdata/nope.yaml")
}

func TestValidate_RequiresArgument(t *testing.T) {
	_, err := execute(t, "validate")
	assert.Error(t, err)
}
