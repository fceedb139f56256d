package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"smartsurvey/internal/ai"
	"smartsurvey/internal/flow"
	"smartsurvey/internal/model"
	"smartsurvey/internal/repository"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// fakeSurveyRepo keeps surveys in memory and honours the version check
type fakeSurveyRepo struct {
	mu      sync.Mutex
	surveys map[string]*model.Survey
}

func newFakeSurveyRepo(surveys ...*model.Survey) *fakeSurveyRepo {
	r := &fakeSurveyRepo{surveys: map[string]*model.Survey{}}
	for _, s := range surveys {
		if s.Version == 0 {
			s.Version = 1
		}
		r.surveys[s.ID] = cloneSurvey(s)
	}
	return r
}

func cloneSurvey(s *model.Survey) *model.Survey {
	c := *s
	c.Questions = append([]model.Question(nil), s.Questions...)
	c.Rules = append([]model.ConditionalRule(nil), s.Rules...)
	return &c
}

func (r *fakeSurveyRepo) Create(_ context.Context, s *model.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Status == "" {
		s.Status = model.SurveyDraft
	}
	r.surveys[s.ID] = cloneSurvey(s)
	return nil
}

func (r *fakeSurveyRepo) GetByID(_ context.Context, id string) (*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok {
		return nil, nil
	}
	return cloneSurvey(s), nil
}

func (r *fakeSurveyRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Survey{}
	for _, s := range r.surveys {
		if s.OwnerID == ownerID && s.Status != model.SurveyDeleted {
			out = append(out, cloneSurvey(s))
		}
	}
	return out, nil
}

func (r *fakeSurveyRepo) Update(_ context.Context, s *model.Survey, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.surveys[s.ID]
	if !ok || cur.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	stored := cloneSurvey(s)
	stored.Stats = cur.Stats
	r.surveys[s.ID] = stored
	return nil
}

func (r *fakeSurveyRepo) IncStats(_ context.Context, id string, d model.SurveyStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.surveys[id]; ok {
		s.Stats.TotalStarted += d.TotalStarted
		s.Stats.TotalCompleted += d.TotalCompleted
		s.Stats.TotalDropouts += d.TotalDropouts
	}
	return nil
}

func (r *fakeSurveyRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.surveys, id)
	return nil
}

type fakeResponseRepo struct {
	mu        sync.Mutex
	responses map[string]*model.Response
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{responses: map[string]*model.Response{}}
}

func (r *fakeResponseRepo) Create(_ context.Context, resp *model.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if resp.Status == "" {
		resp.Status = model.ResponseInProgress
	}
	c := *resp
	r.responses[resp.SessionID] = &c
	return nil
}

func (r *fakeResponseRepo) get(sessionID string) *model.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[sessionID]
	if !ok {
		return nil
	}
	c := *resp
	c.Answers = append(model.AnswerHistory(nil), resp.Answers...)
	c.Skipped = append([]string(nil), resp.Skipped...)
	c.Verdicts = append([]model.QuestionVerdict(nil), resp.Verdicts...)
	return &c
}

func (r *fakeResponseRepo) GetBySessionID(_ context.Context, sessionID string) (*model.Response, error) {
	return r.get(sessionID), nil
}

func (r *fakeResponseRepo) ListBySurvey(_ context.Context, surveyID string, limit int64) ([]*model.Response, error) {
	r.mu.Lock()
	ids := []string{}
	for id, resp := range r.responses {
		if resp.SurveyID == surveyID {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	out := []*model.Response{}
	for _, id := range ids {
		if limit > 0 && int64(len(out)) == limit {
			break
		}
		out = append(out, r.get(id))
	}
	return out, nil
}

func (r *fakeResponseRepo) CountBySurvey(_ context.Context, surveyID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, resp := range r.responses {
		if resp.SurveyID == surveyID {
			n++
		}
	}
	return n, nil
}

func (r *fakeResponseRepo) AnsweredQuestionIDs(_ context.Context, surveyID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	ids := []string{}
	for _, resp := range r.responses {
		if resp.SurveyID != surveyID {
			continue
		}
		for _, a := range resp.Answers {
			if !seen[a.QuestionID] {
				seen[a.QuestionID] = true
				ids = append(ids, a.QuestionID)
			}
		}
	}
	return ids, nil
}

func (r *fakeResponseRepo) with(sessionID string, fn func(*model.Response)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if resp, ok := r.responses[sessionID]; ok {
		fn(resp)
	}
}

func (r *fakeResponseRepo) AppendAnswer(_ context.Context, sessionID string, e model.AnswerEntry) error {
	r.with(sessionID, func(resp *model.Response) { resp.Answers = append(resp.Answers, e) })
	return nil
}

func (r *fakeResponseRepo) AddSkipped(_ context.Context, sessionID string, ids []string) error {
	r.with(sessionID, func(resp *model.Response) { resp.Skipped = append(resp.Skipped, ids...) })
	return nil
}

func (r *fakeResponseRepo) AddVerdict(_ context.Context, sessionID string, v model.QuestionVerdict) error {
	r.with(sessionID, func(resp *model.Response) { resp.Verdicts = append(resp.Verdicts, v) })
	return nil
}

func (r *fakeResponseRepo) Finish(_ context.Context, sessionID string, status model.ResponseStatus, reason string) error {
	r.with(sessionID, func(resp *model.Response) {
		now := time.Now()
		resp.Status = status
		resp.TerminationReason = reason
		resp.FinishedAt = &now
	})
	return nil
}

// fakeGenerator serves canned questions and counts calls
type fakeGenerator struct {
	mu        sync.Mutex
	followUps []model.Question
	generated []model.Question
	err       error
	calls     int
	lastReq   ai.FollowUpRequest
}

func (g *fakeGenerator) GenerateQuestions(context.Context, ai.GenerationRequest) ([]model.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return append([]model.Question(nil), g.generated...), nil
}

func (g *fakeGenerator) GenerateFollowUps(_ context.Context, req ai.FollowUpRequest) ([]model.Question, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	return append([]model.Question(nil), g.followUps...), nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeValidator struct {
	verdict model.QualityVerdict
	err     error
	panics  bool
}

func (v *fakeValidator) ValidateResponse(context.Context, ai.ValidationRequest) (model.QualityVerdict, error) {
	if v.panics {
		panic("validator exploded")
	}
	return v.verdict, v.err
}

// sleepyProvider never answers before the gateway timeout
type sleepyProvider struct{}

func (sleepyProvider) Name() string { return "sleepy" }

func (sleepyProvider) Complete(ctx context.Context, _ ai.CompletionRequest) (string, error) {
	select {
	case <-time.After(5 * time.Second):
		return `{"questions":[]}`, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []flow.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev flow.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []flow.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]flow.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func confidence(v float64) *float64 { return &v }

func question(id string, order int, typ model.QuestionType) model.Question {
	q := model.Question{ID: id, Order: order, Type: typ, Text: "Question " + id, Provenance: model.ProvenanceAuthored}
	if typ.HasOptions() {
		q.Options = []string{"a", "b"}
	}
	return q
}

func publishedSurvey(id string, rules ...model.ConditionalRule) *model.Survey {
	return &model.Survey{
		ID:      id,
		OwnerID: "host_1",
		Title:   "Customer feedback",
		Status:  model.SurveyPublished,
		Version: 1,
		Questions: []model.Question{
			question("Q1", 1, model.QuestionTypeBoolean),
			question("Q2", 2, model.QuestionTypeText),
			question("Q3", 3, model.QuestionTypeText),
		},
		Rules: rules,
		AI:    model.AIConfiguration{},
	}
}

func skipRule(src string, value interface{}, target string) model.ConditionalRule {
	return model.ConditionalRule{
		SourceQuestionID: src,
		Condition:        model.Condition{Operator: model.OpEquals, Value: value},
		Action:           model.Action{Type: model.ActionSkipTo, TargetQuestionID: target},
	}
}

func endRule(src string, value interface{}) model.ConditionalRule {
	return model.ConditionalRule{
		SourceQuestionID: src,
		Condition:        model.Condition{Operator: model.OpEquals, Value: value},
		Action:           model.Action{Type: model.ActionEndSurvey},
	}
}
