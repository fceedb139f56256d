package flow

import (
	"errors"
	"fmt"

	"smartsurvey/internal/model"
)

// IndexedRule is a rule together with its declaration index in the survey
type IndexedRule struct {
	Index int
	Rule  model.ConditionalRule
}

// Graph is an immutable snapshot of one survey version: questions in ordinal
// order plus the rules attached to each source question. Adaptive insertions
// produce a new Graph with a higher revision; the original is never touched.
type Graph struct {
	surveyID string
	version  int64
	revision int

	questions []model.Question
	index     map[string]int
	rules     map[string][]IndexedRule
	// targets of any show_question rule start hidden
	hiddenAtStart map[string]bool
	warnings      []error
}

// Build validates a survey strictly and returns its flow graph. Dangling rule
// references, unknown operators, invalid question types and skip_to cycles are
// all reported; the returned error joins every problem found.
func Build(survey *model.Survey) (*Graph, error) {
	return build(survey, true)
}

// BuildLenient tolerates dangling or malformed rules and keeps them as warnings.
// Duplicate question ids and skip_to cycles are still rejected.
func BuildLenient(survey *model.Survey) (*Graph, error) {
	return build(survey, false)
}

func build(survey *model.Survey, strict bool) (*Graph, error) {
	if survey == nil {
		return nil, fmt.Errorf("%w: nil survey", ErrInvalidGraph)
	}

	sorted := &model.Survey{Questions: append([]model.Question(nil), survey.Questions...)}
	sorted.SortQuestions()

	g := &Graph{
		surveyID:      survey.ID,
		version:       survey.Version,
		questions:     sorted.Questions,
		index:         make(map[string]int, len(sorted.Questions)),
		rules:         make(map[string][]IndexedRule),
		hiddenAtStart: make(map[string]bool),
	}

	var problems []error
	if strict && len(g.questions) == 0 {
		problems = append(problems, fmt.Errorf("%w: survey has no questions", ErrInvalidGraph))
	}

	for i, q := range g.questions {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: question at position %d has no id", ErrInvalidGraph, i)
		}
		if _, dup := g.index[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidGraph, q.ID)
		}
		g.index[q.ID] = i

		if !strict {
			continue
		}
		if !q.Type.Valid() {
			problems = append(problems, fmt.Errorf("%w: question %s has unknown type %q", ErrInvalidGraph, q.ID, q.Type))
		}
		if q.Type.HasOptions() && len(q.Options) == 0 {
			problems = append(problems, fmt.Errorf("%w: question %s needs options", ErrInvalidGraph, q.ID))
		}
	}

	for i, r := range survey.Rules {
		if err := g.checkRule(i, r); err != nil {
			if strict {
				problems = append(problems, err)
			} else {
				g.warnings = append(g.warnings, err)
			}
			// dangling sources can never fire; keep the rest so resolution can degrade per rule
			if _, ok := g.index[r.SourceQuestionID]; !ok {
				continue
			}
		}
		g.rules[r.SourceQuestionID] = append(g.rules[r.SourceQuestionID], IndexedRule{Index: i, Rule: r})
		if r.Action.Type == model.ActionShowQuestion && r.Action.TargetQuestionID != "" {
			g.hiddenAtStart[r.Action.TargetQuestionID] = true
		}
	}

	if err := g.detectCycle(); err != nil {
		problems = append(problems, err)
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return g, nil
}

func (g *Graph) checkRule(i int, r model.ConditionalRule) error {
	fail := func(reason string, err error) error {
		return &RuleConfigurationError{SourceQuestionID: r.SourceQuestionID, RuleIndex: i, Reason: reason, Err: err}
	}
	if _, ok := g.index[r.SourceQuestionID]; !ok {
		return fail("unknown source question", ErrQuestionNotFound)
	}
	switch r.Condition.Operator {
	case model.OpEquals, model.OpNotEquals, model.OpContains, model.OpGreaterThan, model.OpLessThan:
	case model.OpIn, model.OpNotIn:
		if _, ok := operandSet(r.Condition); !ok {
			return fail(fmt.Sprintf("%s needs a value set", r.Condition.Operator), nil)
		}
	default:
		return fail(fmt.Sprintf("unknown operator %q", r.Condition.Operator), nil)
	}
	switch r.Action.Type {
	case model.ActionShowQuestion, model.ActionHideQuestion, model.ActionSkipTo:
		if r.Action.TargetQuestionID == "" {
			return fail(fmt.Sprintf("%s needs a target question", r.Action.Type), nil)
		}
		if _, ok := g.index[r.Action.TargetQuestionID]; !ok {
			return fail(fmt.Sprintf("unknown target question %q", r.Action.TargetQuestionID), ErrQuestionNotFound)
		}
	case model.ActionEndSurvey:
	default:
		return fail(fmt.Sprintf("unknown action %q", r.Action.Type), nil)
	}
	return nil
}

// detectCycle runs a DFS over ordinal successor edges plus skip_to edges.
// Ordinal edges form a chain, so any skip_to that points at or before its
// source closes a cycle.
func (g *Graph) detectCycle() error {
	n := len(g.questions)
	edges := make([][]int, n)
	for i := 0; i+1 < n; i++ {
		edges[i] = append(edges[i], i+1)
	}
	for src, rules := range g.rules {
		from := g.index[src]
		for _, ir := range rules {
			if ir.Rule.Action.Type != model.ActionSkipTo {
				continue
			}
			if to, ok := g.index[ir.Rule.Action.TargetQuestionID]; ok {
				edges[from] = append(edges[from], to)
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make([]int, n)
	parent := make([]int, n)

	var visit func(u int) []int
	visit = func(u int) []int {
		color[u] = grey
		for _, v := range edges[u] {
			switch color[v] {
			case grey:
				cycle := []int{v}
				for w := u; w != v; w = parent[w] {
					cycle = append(cycle, w)
				}
				return append(cycle, v)
			case white:
				parent[v] = u
				if c := visit(v); c != nil {
					return c
				}
			}
		}
		color[u] = black
		return nil
	}

	for s := 0; s < n; s++ {
		if color[s] != white {
			continue
		}
		if c := visit(s); c != nil {
			// c is collected backwards from the closing edge
			path := make([]string, len(c))
			for i := range c {
				path[len(c)-1-i] = g.questions[c[i]].ID
			}
			return &CycleError{Path: path}
		}
	}
	return nil
}

// WithInsertions returns a new graph with qs placed immediately after the
// question afterID. The receiver is left unchanged.
func (g *Graph) WithInsertions(afterID string, qs []model.Question) (*Graph, error) {
	pos, ok := g.index[afterID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, afterID)
	}
	seen := make(map[string]bool, len(qs))
	for _, q := range qs {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: inserted question has no id", ErrInvalidGraph)
		}
		if _, dup := g.index[q.ID]; dup || seen[q.ID] {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidGraph, q.ID)
		}
		seen[q.ID] = true
	}

	questions := make([]model.Question, 0, len(g.questions)+len(qs))
	questions = append(questions, g.questions[:pos+1]...)
	for _, q := range qs {
		q.Order = g.questions[pos].Order
		questions = append(questions, q)
	}
	questions = append(questions, g.questions[pos+1:]...)

	index := make(map[string]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}

	return &Graph{
		surveyID:      g.surveyID,
		version:       g.version,
		revision:      g.revision + 1,
		questions:     questions,
		index:         index,
		rules:         g.rules,
		hiddenAtStart: g.hiddenAtStart,
		warnings:      g.warnings,
	}, nil
}

func (g *Graph) SurveyID() string { return g.surveyID }
func (g *Graph) Version() int64   { return g.version }

// Revision counts the insertions applied on top of the built survey version
func (g *Graph) Revision() int { return g.revision }

func (g *Graph) Len() int { return len(g.questions) }

// Questions returns a copy of the questions in presentation order
func (g *Graph) Questions() []model.Question {
	return append([]model.Question(nil), g.questions...)
}

func (g *Graph) Question(id string) (model.Question, bool) {
	i, ok := g.index[id]
	if !ok {
		return model.Question{}, false
	}
	return g.questions[i], true
}

// Position is the zero-based presentation index of a question
func (g *Graph) Position(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// RulesFor returns the rules whose source is id, in declaration order
func (g *Graph) RulesFor(id string) []IndexedRule {
	return g.rules[id]
}

// Warnings lists rule problems tolerated by BuildLenient
func (g *Graph) Warnings() []error {
	return append([]error(nil), g.warnings...)
}

// HiddenAtStart reports whether id is only shown once a show_question rule fires
func (g *Graph) HiddenAtStart(id string) bool {
	return g.hiddenAtStart[id]
}
