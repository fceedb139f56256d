package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	systemQuestionDesign = `You are an expert survey designer. Write clear, unbiased, culturally appropriate questions that work for respondents of varied backgrounds and reading levels.`

	systemResponseReview = `You are a data validation expert for survey operations. Check answers for relevance, consistency and completeness, while staying tolerant of language variation.`
)

const questionSchema = `{
  "questions": [
    {
      "type": "text" | "multiple_choice" | "rating" | "number" | "date" | "boolean" | "dropdown" | "matrix",
      "text": "the question",
      "description": "helper text",
      "required": true,
      "options": ["only for multiple_choice, dropdown and matrix"],
      "validation": {"minLength": 0, "maxLength": 500, "min": 0, "max": 10, "pattern": ""},
      "confidence": 0.0 to 1.0
    }
  ]
}`

func buildGenerationPrompt(req GenerationRequest) string {
	return fmt.Sprintf(`Generate %d survey questions for the following context. Return ONLY valid JSON matching this schema:
%s

Category: %s
Target Audience: %s
Language: %s
Context Prompts: %s

Requirements:
1. Mix question types (multiple choice, text, rating scales) where it helps.
2. Keep wording neutral and accessible.
3. Provide validation rules when an answer has natural bounds.
4. Set confidence to how well each question fits the context.`,
		req.count(), questionSchema, req.Category, req.TargetAudience, req.language(), strings.Join(req.Prompts, ", "))
}

func buildFollowUpPrompt(req FollowUpRequest) string {
	var recent strings.Builder
	for _, a := range req.Recent {
		answer, _ := json.Marshal(a.Answer)
		fmt.Fprintf(&recent, "- Q: %s\n  A: %s\n", a.Text, answer)
	}
	return fmt.Sprintf(`Based on the respondent's recent answers, generate 1 to %d adaptive follow-up questions. Return ONLY valid JSON matching this schema:
%s

Survey: %s
Category: %s
Language: %s
Just answered: %s
Recent answers:
%s
The follow-ups must build on what the respondent said, probe anything unclear or unexpected, and stay short enough to keep them engaged. Do not repeat questions already asked.`,
		req.max(), questionSchema, req.SurveyTitle, req.Category, req.language(), req.Current.Text, recent.String())
}

func buildValidationPrompt(req ValidationRequest) string {
	answer, _ := json.Marshal(req.Answer)
	return fmt.Sprintf(`Analyze this survey response for quality, consistency and completeness. Return ONLY valid JSON matching this schema:
{
  "isValid": true,
  "confidence": 0.0 to 1.0,
  "issues": ["identified issue"],
  "suggestions": ["improvement suggestion"],
  "qualityScore": 0 to 10
}

Question: %s
Question Type: %s
Required: %t
Response: %s

Check for relevance, spam or low-effort answers, logical inconsistencies and missing required information.`,
		req.Question.Text, req.Question.Type, req.Question.Required, answer)
}
