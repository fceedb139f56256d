package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
)

// ResponseRepo stores one document per respondent session. Answers are only
// ever appended.
type ResponseRepo interface {
	Create(ctx context.Context, resp *model.Response) error
	GetBySessionID(ctx context.Context, sessionID string) (*model.Response, error)
	ListBySurvey(ctx context.Context, surveyID string, limit int64) ([]*model.Response, error)
	CountBySurvey(ctx context.Context, surveyID string) (int64, error)
	// AnsweredQuestionIDs lists every question id that appears in a recorded answer
	AnsweredQuestionIDs(ctx context.Context, surveyID string) ([]string, error)
	AppendAnswer(ctx context.Context, sessionID string, entry model.AnswerEntry) error
	AddSkipped(ctx context.Context, sessionID string, questionIDs []string) error
	AddVerdict(ctx context.Context, sessionID string, v model.QuestionVerdict) error
	Finish(ctx context.Context, sessionID string, status model.ResponseStatus, reason string) error
}

type responseRepo struct {
	collection *mongo.Collection
	log        *logger.Logger
}

func NewResponseRepo(db *mongo.Database, log *logger.Logger) ResponseRepo {
	if log == nil {
		log = logger.NewNop()
	}
	r := &responseRepo{
		collection: db.Collection("responses"),
		log:        log,
	}
	r.ensureIndexes()
	return r
}

func (r *responseRepo) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "surveyId", Value: 1}, {Key: "startedAt", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		r.log.Warn("ensure indexes failed", "collection", r.collection.Name(), "error", err)
	}
}

func (r *responseRepo) Create(ctx context.Context, resp *model.Response) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	if resp.StartedAt.IsZero() {
		resp.StartedAt = time.Now()
	}
	if resp.Answers == nil {
		resp.Answers = model.AnswerHistory{}
	}
	if resp.Status == "" {
		resp.Status = model.ResponseInProgress
	}
	_, err := r.collection.InsertOne(ctx, resp)
	return err
}

func (r *responseRepo) GetBySessionID(ctx context.Context, sessionID string) (*model.Response, error) {
	var resp model.Response
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&resp)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) ListBySurvey(ctx context.Context, surveyID string, limit int64) ([]*model.Response, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"surveyId": surveyID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	responses := []*model.Response{}
	if err := cursor.All(ctx, &responses); err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *responseRepo) CountBySurvey(ctx context.Context, surveyID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"surveyId": surveyID})
}

func (r *responseRepo) AnsweredQuestionIDs(ctx context.Context, surveyID string) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "answers.questionId", bson.M{"surveyId": surveyID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *responseRepo) AppendAnswer(ctx context.Context, sessionID string, entry model.AnswerEntry) error {
	update := bson.M{"$push": bson.M{"answers": entry}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"sessionId": sessionID}, update)
	return err
}

func (r *responseRepo) AddSkipped(ctx context.Context, sessionID string, questionIDs []string) error {
	if len(questionIDs) == 0 {
		return nil
	}
	update := bson.M{"$addToSet": bson.M{"skipped": bson.M{"$each": questionIDs}}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"sessionId": sessionID}, update)
	return err
}

func (r *responseRepo) AddVerdict(ctx context.Context, sessionID string, v model.QuestionVerdict) error {
	update := bson.M{"$push": bson.M{"verdicts": v}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"sessionId": sessionID}, update)
	return err
}

func (r *responseRepo) Finish(ctx context.Context, sessionID string, status model.ResponseStatus, reason string) error {
	set := bson.M{"status": status, "finishedAt": time.Now()}
	if reason != "" {
		set["terminationReason"] = reason
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"sessionId": sessionID}, bson.M{"$set": set})
	return err
}
