package service

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"smartsurvey/internal/flow"
	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
)

const (
	graphTTL             = time.Hour
	graphCleanupInterval = 10 * time.Minute
)

// GraphRegistry memoizes the built flow graph of each published survey version.
// Graphs are immutable so one instance is shared by every session on that version.
type GraphRegistry struct {
	graphs *gocache.Cache
	log    *logger.Logger
}

func NewGraphRegistry(log *logger.Logger) *GraphRegistry {
	return newGraphRegistry(graphTTL, log)
}

func newGraphRegistry(ttl time.Duration, log *logger.Logger) *GraphRegistry {
	if log == nil {
		log = logger.NewNop()
	}
	return &GraphRegistry{
		graphs: gocache.New(ttl, graphCleanupInterval),
		log:    log,
	}
}

func (r *GraphRegistry) key(surveyID string, version int64) string {
	return fmt.Sprintf("%s@%d", surveyID, version)
}

// Get returns the graph for the survey's current version, building it on a miss
func (r *GraphRegistry) Get(survey *model.Survey) (*flow.Graph, error) {
	k := r.key(survey.ID, survey.Version)
	if g, ok := r.graphs.Get(k); ok {
		r.graphs.SetDefault(k, g)
		return g.(*flow.Graph), nil
	}

	g, err := flow.Build(survey)
	if err != nil {
		return nil, err
	}
	r.graphs.SetDefault(k, g)
	return g, nil
}

// ForSession returns the graph a session should run against. Sessions stay on
// the version they started with while it is still held; once it is gone the
// current version is used. Every hit restarts the entry's expiry, so a version
// stays held as long as some session keeps using it.
func (r *GraphRegistry) ForSession(survey *model.Survey, state *model.SessionState) (*flow.Graph, error) {
	if state.SurveyVersion != survey.Version {
		k := r.key(survey.ID, state.SurveyVersion)
		if g, ok := r.graphs.Get(k); ok {
			r.graphs.SetDefault(k, g)
			return g.(*flow.Graph), nil
		}
		r.log.Warn("session survey version no longer held, using current",
			"session_id", state.SessionID, "survey_id", survey.ID,
			"session_version", state.SurveyVersion, "current_version", survey.Version)
	}
	return r.Get(survey)
}

// Put stores a freshly validated graph
func (r *GraphRegistry) Put(g *flow.Graph) {
	r.graphs.SetDefault(r.key(g.SurveyID(), g.Version()), g)
}

// Forget drops every cached version of a survey
func (r *GraphRegistry) Forget(surveyID string) {
	prefix := surveyID + "@"
	for k := range r.graphs.Items() {
		if strings.HasPrefix(k, prefix) {
			r.graphs.Delete(k)
		}
	}
}

// View replays a session's adaptive insertions over the base graph
func View(base *flow.Graph, insertions []model.Insertion) (*flow.Graph, error) {
	g := base
	for _, ins := range insertions {
		next, err := g.WithInsertions(ins.AfterQuestionID, ins.Questions)
		if err != nil {
			return g, err
		}
		g = next
	}
	return g, nil
}
