package flow

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
)

var fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "survey_flow_fallbacks_total",
	Help: "Rule problems absorbed by the flow resolver, by kind.",
}, []string{"kind"})

type StateKind string

const (
	AwaitingAnswer StateKind = "awaiting_answer"
	Completed      StateKind = "completed"
	Terminated     StateKind = "terminated"
)

// State is the outcome of one resolution step. Redirected is set when a skip_to
// rule picked the question; Skipped lists the questions it jumped over, which
// stay absent from the answer history.
type State struct {
	Kind       StateKind `json:"kind"`
	QuestionID string    `json:"questionId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Redirected bool      `json:"redirected,omitempty"`
	Skipped    []string  `json:"skipped,omitempty"`
}

// Resolver decides the next question for an answer history. It holds no
// per-session state and is safe for concurrent use.
type Resolver struct {
	log *logger.Logger
}

func NewResolver(log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &Resolver{log: log}
}

// Next resolves the state that follows history. The last entry is treated as
// the answer to the current question. An empty history yields the first
// visible question.
func (r *Resolver) Next(g *Graph, history model.AnswerHistory) State {
	answered := history.AnsweredSet()
	visible := r.visibility(g, history)

	last, ok := history.Last()
	if !ok {
		return r.advance(g, -1, visible, answered)
	}

	cur, ok := g.Position(last.QuestionID)
	if !ok {
		r.fallback("unknown_position", g, "answer for unknown question, resuming after furthest answer",
			"question_id", last.QuestionID)
		cur = furthest(g, history)
		return r.advance(g, cur, visible, answered)
	}

	var skip *IndexedRule
	for _, ir := range g.RulesFor(last.QuestionID) {
		action := ir.Rule.Action.Type
		if action != model.ActionEndSurvey && action != model.ActionSkipTo {
			continue
		}
		if !r.fires(g, ir, last.Value) {
			continue
		}
		if action == model.ActionEndSurvey {
			return State{
				Kind:   Terminated,
				Reason: fmt.Sprintf("end_survey rule %d on %s", ir.Index, ir.Rule.SourceQuestionID),
			}
		}
		if skip == nil {
			ir := ir
			skip = &ir
		}
	}

	if skip != nil {
		if st, ok := r.skipTo(g, cur, *skip, answered); ok {
			return st
		}
	}
	return r.advance(g, cur, visible, answered)
}

func (r *Resolver) skipTo(g *Graph, cur int, ir IndexedRule, answered map[string]bool) (State, bool) {
	target := ir.Rule.Action.TargetQuestionID
	pos, ok := g.Position(target)
	if !ok {
		r.fallback("dangling_target", g, "skip_to target not found, advancing in order",
			"rule_error", &RuleConfigurationError{
				SourceQuestionID: ir.Rule.SourceQuestionID,
				RuleIndex:        ir.Index,
				Reason:           fmt.Sprintf("unknown target question %q", target),
				Err:              ErrQuestionNotFound,
			})
		return State{}, false
	}
	if pos <= cur || answered[target] {
		r.fallback("backward_skip", g, "skip_to target is not ahead of the current question, advancing in order",
			"rule_error", &RuleConfigurationError{
				SourceQuestionID: ir.Rule.SourceQuestionID,
				RuleIndex:        ir.Index,
				Reason:           fmt.Sprintf("skip_to %s does not move forward", target),
			})
		return State{}, false
	}

	var skipped []string
	for _, q := range g.questions[cur+1 : pos] {
		if !answered[q.ID] {
			skipped = append(skipped, q.ID)
		}
	}
	return State{Kind: AwaitingAnswer, QuestionID: target, Redirected: true, Skipped: skipped}, true
}

// advance picks the first visible, unanswered question after position cur
func (r *Resolver) advance(g *Graph, cur int, visible map[string]bool, answered map[string]bool) State {
	for _, q := range g.questions[cur+1:] {
		if answered[q.ID] || !visible[q.ID] {
			continue
		}
		return State{Kind: AwaitingAnswer, QuestionID: q.ID}
	}
	return State{Kind: Completed}
}

// visibility replays show/hide effects over the whole history. Later answers
// override earlier ones; within one answer the first firing rule per target wins.
func (r *Resolver) visibility(g *Graph, history model.AnswerHistory) map[string]bool {
	visible := make(map[string]bool, g.Len())
	for _, q := range g.questions {
		visible[q.ID] = !g.HiddenAtStart(q.ID)
	}

	for _, entry := range history {
		decided := make(map[string]bool)
		for _, ir := range g.RulesFor(entry.QuestionID) {
			action := ir.Rule.Action.Type
			if action != model.ActionShowQuestion && action != model.ActionHideQuestion {
				continue
			}
			target := ir.Rule.Action.TargetQuestionID
			if decided[target] {
				continue
			}
			if _, ok := g.Position(target); !ok {
				r.fallback("dangling_target", g, "visibility target not found, rule ignored",
					"source_question_id", ir.Rule.SourceQuestionID, "rule_index", ir.Index, "target", target)
				continue
			}
			if !r.fires(g, ir, entry.Value) {
				continue
			}
			decided[target] = true
			visible[target] = action == model.ActionShowQuestion
		}
	}
	return visible
}

func (r *Resolver) fires(g *Graph, ir IndexedRule, answer interface{}) bool {
	ok, err := Check(ir.Rule.Condition, answer)
	if err != nil {
		r.fallback("rule_error", g, "rule condition could not be applied",
			"rule_error", &RuleConfigurationError{
				SourceQuestionID: ir.Rule.SourceQuestionID,
				RuleIndex:        ir.Index,
				Reason:           "condition evaluation failed",
				Err:              err,
			})
		return false
	}
	return ok
}

func (r *Resolver) fallback(kind string, g *Graph, msg string, kv ...interface{}) {
	fallbacks.WithLabelValues(kind).Inc()
	r.log.Warn(msg, append([]interface{}{"survey_id", g.SurveyID(), "kind", kind}, kv...)...)
}

func furthest(g *Graph, history model.AnswerHistory) int {
	pos := -1
	for _, e := range history {
		if p, ok := g.Position(e.QuestionID); ok && p > pos {
			pos = p
		}
	}
	return pos
}
