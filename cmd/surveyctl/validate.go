package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"smartsurvey/internal/flow"
	"smartsurvey/internal/model"
	"smartsurvey/internal/service"
)

var errInvalidFiles = errors.New("one or more surveys are invalid")

// loadSurvey reads a YAML survey definition and fills the defaults a new
// survey gets from the API
func loadSurvey(path string) (*model.Survey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var survey model.Survey
	if err := yaml.Unmarshal(raw, &survey); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if survey.Title == "" {
		return nil, fmt.Errorf("%s: title is required", path)
	}
	survey.AI = survey.AI.WithDefaults()
	service.NormalizeQuestions(&survey)
	return &survey, nil
}

// checkSurvey loads path and builds its strict graph
func checkSurvey(path string) (*model.Survey, *flow.Graph, error) {
	survey, err := loadSurvey(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := flow.Build(survey)
	if err != nil {
		return survey, nil, err
	}
	return survey, g, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := false
	for _, path := range args {
		survey, g, err := checkSurvey(path)
		if err != nil {
			failed = true
			fmt.Fprintf(out, "FAIL %s\n", path)
			for _, problem := range unjoin(err) {
				fmt.Fprintf(out, "  - %v\n", problem)
			}
			continue
		}
		fmt.Fprintf(out, "OK   %s: %q, %d questions, %d rules\n", path, survey.Title, g.Len(), len(survey.Rules))
	}
	if failed {
		return errInvalidFiles
	}
	return nil
}

// unjoin splits an errors.Join result back into its parts
func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
