package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"smartsurvey/internal/model"
	"smartsurvey/internal/platform/logger"
)

const indexTimeout = 10 * time.Second

// ErrVersionConflict means the stored survey moved on since the caller read it
var ErrVersionConflict = errors.New("survey version conflict")

// SurveyRepo handles MongoDB operations for surveys
type SurveyRepo interface {
	Create(ctx context.Context, survey *model.Survey) error
	GetByID(ctx context.Context, id string) (*model.Survey, error)
	// ListByOwner skips soft-deleted surveys
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Survey, error)
	// Update writes the survey only if the stored version equals expectedVersion,
	// then bumps survey.Version by one. Stats are left to IncStats.
	Update(ctx context.Context, survey *model.Survey, expectedVersion int64) error
	// IncStats adds delta to the stored counters without touching the version
	IncStats(ctx context.Context, id string, delta model.SurveyStats) error
	Delete(ctx context.Context, id string) error
}

type surveyRepo struct {
	collection *mongo.Collection
	log        *logger.Logger
}

// NewSurveyRepo creates a new survey repository
func NewSurveyRepo(db *mongo.Database, log *logger.Logger) SurveyRepo {
	if log == nil {
		log = logger.NewNop()
	}
	r := &surveyRepo{
		collection: db.Collection("surveys"),
		log:        log,
	}
	r.ensureIndexes()
	return r
}

func (r *surveyRepo) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "updatedAt", Value: -1}},
		Options: options.Index(),
	})
	if err != nil {
		r.log.Warn("ensure indexes failed", "collection", r.collection.Name(), "error", err)
	}
}

func (r *surveyRepo) Create(ctx context.Context, survey *model.Survey) error {
	if survey.ID == "" {
		survey.ID = uuid.NewString()
	}
	now := time.Now()
	survey.CreatedAt = now
	survey.UpdatedAt = now
	if survey.Version == 0 {
		survey.Version = 1
	}
	if survey.Status == "" {
		survey.Status = model.SurveyDraft
	}

	_, err := r.collection.InsertOne(ctx, survey)
	return err
}

func (r *surveyRepo) GetByID(ctx context.Context, id string) (*model.Survey, error) {
	var survey model.Survey
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&survey)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &survey, nil
}

func (r *surveyRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Survey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	filter := bson.M{"ownerId": ownerID, "status": bson.M{"$ne": model.SurveyDeleted}}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	surveys := []*model.Survey{}
	if err := cursor.All(ctx, &surveys); err != nil {
		return nil, err
	}
	return surveys, nil
}

func (r *surveyRepo) Update(ctx context.Context, survey *model.Survey, expectedVersion int64) error {
	next := *survey
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now()

	set, err := setDocument(&next)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": survey.ID, "version": expectedVersion}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	*survey = next
	return nil
}

// setDocument renders a survey as a $set document. Counters are maintained by
// $inc so a stale copy must never overwrite them.
func setDocument(survey *model.Survey) (bson.M, error) {
	raw, err := bson.Marshal(survey)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	delete(doc, "_id")
	delete(doc, "stats")
	return doc, nil
}

func (r *surveyRepo) IncStats(ctx context.Context, id string, delta model.SurveyStats) error {
	inc := bson.M{}
	if delta.TotalStarted != 0 {
		inc["stats.totalStarted"] = delta.TotalStarted
	}
	if delta.TotalCompleted != 0 {
		inc["stats.totalCompleted"] = delta.TotalCompleted
	}
	if delta.TotalDropouts != 0 {
		inc["stats.totalDropouts"] = delta.TotalDropouts
	}
	if len(inc) == 0 {
		return nil
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": inc})
	return err
}

func (r *surveyRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
