package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartsurvey/internal/cache"
	"smartsurvey/internal/flow"
	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
	"smartsurvey/internal/repository"
)

// SessionView is what a respondent sees after each step
type SessionView struct {
	SessionID string              `json:"sessionId"`
	SurveyID  string              `json:"surveyId"`
	Status    model.SessionStatus `json:"status"`
	Question  *model.Question     `json:"question,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Answered  int                 `json:"answered"`
	Total     int                 `json:"total"`
}

// SessionService drives respondent sessions through a survey's flow graph
type SessionService struct {
	surveyRepo   repository.SurveyRepo
	responseRepo repository.ResponseRepo
	sessions     cache.SessionCache
	graphs       *GraphRegistry
	resolver     *flow.Resolver
	adaptive     *AdaptiveInserter
	validation   *ValidationPolicy
	publisher    flow.Publisher
	live         cache.LiveProgressCache
	log          *logger.Logger
	now          func() time.Time

	background sync.WaitGroup
}

func NewSessionService(
	surveyRepo repository.SurveyRepo,
	responseRepo repository.ResponseRepo,
	sessions cache.SessionCache,
	graphs *GraphRegistry,
	resolver *flow.Resolver,
	adaptive *AdaptiveInserter,
	validation *ValidationPolicy,
	log *logger.Logger,
) *SessionService {
	if log == nil {
		log = logger.NewNop()
	}
	return &SessionService{
		surveyRepo:   surveyRepo,
		responseRepo: responseRepo,
		sessions:     sessions,
		graphs:       graphs,
		resolver:     resolver,
		adaptive:     adaptive,
		validation:   validation,
		publisher:    flow.NopPublisher{},
		log:          log,
		now:          time.Now,
	}
}

// SetPublisher sets the sink for progress events
func (s *SessionService) SetPublisher(p flow.Publisher) {
	if p == nil {
		p = flow.NopPublisher{}
	}
	s.publisher = p
}

// SetLiveProgress enables the per-survey live progress board
func (s *SessionService) SetLiveProgress(live cache.LiveProgressCache) {
	s.live = live
}

// Wait blocks until background verdict writes have finished
func (s *SessionService) Wait() {
	s.background.Wait()
}

// Start opens a new session on a published survey and resolves its first question
func (s *SessionService) Start(ctx context.Context, surveyID string) (*SessionView, error) {
	survey, err := s.surveyRepo.GetByID(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	if err := s.checkOpen(ctx, survey); err != nil {
		return nil, err
	}

	g, err := s.graphs.Get(survey)
	if err != nil {
		return nil, fmt.Errorf("build flow graph: %w", err)
	}

	now := s.now()
	state := &model.SessionState{
		SessionID:     uuid.NewString(),
		SurveyID:      survey.ID,
		SurveyVersion: survey.Version,
		History:       model.AnswerHistory{},
		StartedAt:     now,
		UpdatedAt:     now,
	}
	st := s.resolver.Next(g, state.History)
	apply(state, st)

	resp := &model.Response{
		SessionID:     state.SessionID,
		SurveyID:      survey.ID,
		SurveyVersion: survey.Version,
		Skipped:       state.Skipped,
		StartedAt:     now,
	}
	if err := s.responseRepo.Create(ctx, resp); err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}
	if err := s.sessions.Set(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.count(ctx, survey.ID, model.SurveyStats{TotalStarted: 1})

	if state.Finished() {
		s.finish(ctx, state)
	} else {
		s.touchLive(ctx, state)
	}
	s.emit(ctx, state, st)

	s.log.Info("session started", "session_id", state.SessionID, "survey_id", survey.ID, "version", survey.Version)
	return s.view(state, g), nil
}

// Submit records the answer to the current question and advances the flow
func (s *SessionService) Submit(ctx context.Context, sessionID, questionID string, value interface{}) (*SessionView, error) {
	unlock, err := s.sessions.Lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}
	if state.Finished() {
		return nil, ErrSessionFinished
	}

	survey, err := s.surveyRepo.GetByID(ctx, state.SurveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	if survey.Status == model.SurveyDeleted {
		return nil, ErrSurveyDeleted
	}
	if deadline, ok := survey.Settings.SessionDeadline(state.StartedAt); ok && s.now().After(deadline) {
		if err := s.timeOut(ctx, state); err != nil {
			return nil, err
		}
		return nil, ErrSessionTimedOut
	}
	if state.CurrentQuestionID != questionID {
		return nil, ErrNotCurrentQuestion
	}

	g, err := s.graphFor(survey, state)
	if err != nil {
		return nil, err
	}
	question, ok := g.Question(questionID)
	if !ok {
		return nil, ErrQuestionNotFound
	}
	if err := CheckAnswer(question, value); err != nil {
		return nil, err
	}

	entry := model.AnswerEntry{QuestionID: questionID, Value: value, AnsweredAt: s.now()}
	if err := s.responseRepo.AppendAnswer(ctx, sessionID, entry); err != nil {
		return nil, fmt.Errorf("append answer: %w", err)
	}
	history := state.History.Append(entry)

	st := s.resolver.Next(g, history)
	// follow-ups only go in when the static flow would carry on in order
	if s.adaptive != nil && st.Kind != flow.Terminated && !st.Redirected {
		if next, inserted := s.adaptive.MaybeInsert(ctx, survey, state, g, history); inserted {
			g = next
			st = s.resolver.Next(g, history)
		}
	}

	state.History = history
	state.UpdatedAt = s.now()
	apply(state, st)

	if len(st.Skipped) > 0 {
		if err := s.responseRepo.AddSkipped(ctx, sessionID, st.Skipped); err != nil {
			s.log.Warn("record skipped questions failed", "session_id", sessionID, "error", err)
		}
	}
	if err := s.sessions.Set(ctx, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if state.Finished() {
		s.finish(ctx, state)
	} else {
		s.touchLive(ctx, state)
	}
	s.emit(ctx, state, st)

	if s.validation != nil && survey.AI.ResponseValidation.Enabled {
		s.assessAsync(sessionID, question, value, survey.AI.ResponseValidation)
	}

	return s.view(state, g), nil
}

// Current returns the session's position without changing it
func (s *SessionService) Current(ctx context.Context, sessionID string) (*SessionView, error) {
	state, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if state == nil {
		return nil, ErrSessionNotFound
	}
	survey, err := s.surveyRepo.GetByID(ctx, state.SurveyID)
	if err != nil {
		return nil, fmt.Errorf("load survey: %w", err)
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	g, err := s.graphFor(survey, state)
	if err != nil {
		return nil, err
	}
	return s.view(state, g), nil
}

func (s *SessionService) graphFor(survey *model.Survey, state *model.SessionState) (*flow.Graph, error) {
	base, err := s.graphs.ForSession(survey, state)
	if err != nil {
		return nil, fmt.Errorf("build flow graph: %w", err)
	}
	g, err := View(base, state.Insertions)
	if err != nil {
		s.log.Warn("replaying adaptive insertions failed", "session_id", state.SessionID, "error", err)
	}
	return g, nil
}

// checkOpen reports whether a survey accepts new sessions right now
func (s *SessionService) checkOpen(ctx context.Context, survey *model.Survey) error {
	switch survey.Status {
	case model.SurveyPublished:
	case model.SurveyDeleted:
		return ErrSurveyDeleted
	default:
		return ErrSurveyNotPublished
	}

	now := s.now()
	set := survey.Settings
	if set.LaunchDate != nil && now.Before(*set.LaunchDate) {
		return ErrSurveyNotOpen
	}
	if set.ExpiryDate != nil && !now.Before(*set.ExpiryDate) {
		return ErrSurveyExpired
	}
	if set.MaxResponses > 0 {
		n, err := s.responseRepo.CountBySurvey(ctx, survey.ID)
		if err != nil {
			return fmt.Errorf("count responses: %w", err)
		}
		if n >= int64(set.MaxResponses) {
			return ErrResponseLimitReached
		}
	}
	return nil
}

// timeOut ends a session that ran past the survey's time limit
func (s *SessionService) timeOut(ctx context.Context, state *model.SessionState) error {
	st := flow.State{Kind: flow.Terminated, Reason: model.ReasonTimeLimit}
	state.UpdatedAt = s.now()
	apply(state, st)
	if err := s.sessions.Set(ctx, state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.finish(ctx, state)
	s.emit(ctx, state, st)
	return nil
}

func (s *SessionService) count(ctx context.Context, surveyID string, delta model.SurveyStats) {
	if err := s.surveyRepo.IncStats(ctx, surveyID, delta); err != nil {
		s.log.Warn("update survey stats failed", "survey_id", surveyID, "error", err)
	}
}

func (s *SessionService) assessAsync(sessionID string, q model.Question, value interface{}, cfg model.ValidationConfig) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("verdict goroutine panicked", "session_id", sessionID, "panic", r)
			}
		}()

		ctx := context.Background()
		qv := s.validation.Judge(ctx, q, value, cfg)
		qv.AssessedAt = s.now()
		if err := s.responseRepo.AddVerdict(ctx, sessionID, qv); err != nil {
			s.log.Warn("store verdict failed", "session_id", sessionID, "question_id", q.ID, "error", err)
		}
	}()
}

func (s *SessionService) finish(ctx context.Context, state *model.SessionState) {
	status := model.ResponseCompleted
	if state.Status == model.SessionTerminated {
		status = model.ResponseTerminated
	}
	if err := s.responseRepo.Finish(ctx, state.SessionID, status, state.TerminationReason); err != nil {
		s.log.Warn("finish response failed", "session_id", state.SessionID, "error", err)
	}
	if state.TerminationReason == model.ReasonTimeLimit {
		s.count(ctx, state.SurveyID, model.SurveyStats{TotalDropouts: 1})
	} else {
		s.count(ctx, state.SurveyID, model.SurveyStats{TotalCompleted: 1})
	}
	if s.live != nil {
		if err := s.live.Remove(ctx, state.SurveyID, state.SessionID); err != nil {
			s.log.Debug("live progress remove failed", "session_id", state.SessionID, "error", err)
		}
	}
	s.log.Info("session finished", "session_id", state.SessionID, "status", state.Status, "answered", len(state.History))
}

func (s *SessionService) touchLive(ctx context.Context, state *model.SessionState) {
	if s.live == nil {
		return
	}
	if err := s.live.Touch(ctx, state.SurveyID, state.SessionID, len(state.History)); err != nil {
		s.log.Debug("live progress update failed", "session_id", state.SessionID, "error", err)
	}
}

func (s *SessionService) emit(ctx context.Context, state *model.SessionState, st flow.State) {
	s.publisher.Publish(ctx, flow.Event{
		Type:       flow.EventFor(st),
		SurveyID:   state.SurveyID,
		SessionID:  state.SessionID,
		QuestionID: st.QuestionID,
		Reason:     st.Reason,
		Answered:   len(state.History),
		At:         s.now(),
	})
}

func (s *SessionService) view(state *model.SessionState, g *flow.Graph) *SessionView {
	v := &SessionView{
		SessionID: state.SessionID,
		SurveyID:  state.SurveyID,
		Status:    state.Status,
		Reason:    state.TerminationReason,
		Answered:  len(state.History),
		Total:     g.Len(),
	}
	if state.Status == model.SessionAwaitingAnswer {
		if q, ok := g.Question(state.CurrentQuestionID); ok {
			v.Question = &q
		}
	}
	return v
}

func apply(state *model.SessionState, st flow.State) {
	switch st.Kind {
	case flow.AwaitingAnswer:
		state.Status = model.SessionAwaitingAnswer
		state.CurrentQuestionID = st.QuestionID
	case flow.Completed:
		state.Status = model.SessionCompleted
		state.CurrentQuestionID = ""
	case flow.Terminated:
		state.Status = model.SessionTerminated
		state.CurrentQuestionID = ""
		state.TerminationReason = st.Reason
	}
	state.Skipped = append(state.Skipped, st.Skipped...)
}
