package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"smartsurvey/internal/model"
)

var answerValidate = validator.New()

// AnswerError lists why an answer was refused
type AnswerError struct {
	QuestionID string
	Problems   []string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("answer to %s rejected: %s", e.QuestionID, strings.Join(e.Problems, "; "))
}

func (e *AnswerError) Unwrap() error { return ErrInvalidAnswer }

// CheckAnswer enforces a question's required flag and validation rules. An
// empty answer to an optional question is accepted without further checks.
func CheckAnswer(q model.Question, value interface{}) error {
	if emptyAnswer(value) {
		if q.Required {
			return &AnswerError{QuestionID: q.ID, Problems: []string{"an answer is required"}}
		}
		return nil
	}

	rules := q.Validation
	var problems []string

	if text, ok := value.(string); ok {
		problems = append(problems, lengthProblems(text, rules)...)
		if rules.Pattern != "" {
			// patterns are checked at authoring time, a bad one here is skipped
			if re, err := regexp.Compile(rules.Pattern); err == nil && !re.MatchString(text) {
				problems = append(problems, "does not match the expected format")
			}
		}
	}

	if rules.Min != nil || rules.Max != nil {
		n, ok := numericAnswer(value)
		if !ok {
			problems = append(problems, "expected a number")
		} else {
			problems = append(problems, rangeProblems(n, rules)...)
		}
	}

	if len(problems) > 0 {
		return &AnswerError{QuestionID: q.ID, Problems: problems}
	}
	return nil
}

// checkQuestionRules rejects validation rules that can never be satisfied
func checkQuestionRules(survey *model.Survey) error {
	var errs []error
	for _, q := range survey.Questions {
		r := q.Validation
		if r.Pattern != "" {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				errs = append(errs, fmt.Errorf("question %s: invalid pattern: %w", q.ID, err))
			}
		}
		if r.MinLength != nil && r.MaxLength != nil && *r.MinLength > *r.MaxLength {
			errs = append(errs, fmt.Errorf("question %s: minLength exceeds maxLength", q.ID))
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			errs = append(errs, fmt.Errorf("question %s: min exceeds max", q.ID))
		}
	}
	return errors.Join(errs...)
}

func emptyAnswer(value interface{}) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func numericAnswer(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	}
	return 0, false
}

func lengthProblems(text string, rules model.ValidationRules) []string {
	var tags []string
	if rules.MinLength != nil {
		tags = append(tags, "min="+strconv.Itoa(*rules.MinLength))
	}
	if rules.MaxLength != nil {
		tags = append(tags, "max="+strconv.Itoa(*rules.MaxLength))
	}
	return describe(answerValidate.Var(text, strings.Join(tags, ",")), map[string]string{
		"min": "must be at least %s characters",
		"max": "must be at most %s characters",
	})
}

func rangeProblems(n float64, rules model.ValidationRules) []string {
	var tags []string
	if rules.Min != nil {
		tags = append(tags, "gte="+strconv.FormatFloat(*rules.Min, 'g', -1, 64))
	}
	if rules.Max != nil {
		tags = append(tags, "lte="+strconv.FormatFloat(*rules.Max, 'g', -1, 64))
	}
	return describe(answerValidate.Var(n, strings.Join(tags, ",")), map[string]string{
		"gte": "must be at least %s",
		"lte": "must be at most %s",
	})
}

func describe(err error, messages map[string]string) []string {
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ves))
	for _, fe := range ves {
		if msg, ok := messages[fe.Tag()]; ok {
			out = append(out, fmt.Sprintf(msg, fe.Param()))
		} else {
			out = append(out, fe.Tag()+" "+fe.Param())
		}
	}
	return out
}
