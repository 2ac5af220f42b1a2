package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/prepwise/prepwise/internal/models"
	"github.com/prepwise/prepwise/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AnswerUpdate carries the per-question fields SaveAnswer persists. The repo
// writes exactly these fields of exactly one embedded question; nothing else in
// the session document is touched.
type AnswerUpdate struct {
	UserAnswer    string
	MediaURL      *string
	Transcription string
	IsAnswered    bool
}

type SessionRepository interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	ListByOwner(ctx context.Context, ownerID string, limit int64) ([]models.InterviewSession, error)
	UpdateQuestionAnswer(ctx context.Context, sessionID, questionID string, upd AnswerUpdate) error
	ShiftIndex(ctx context.Context, sessionID string, delta, lo, hi int) (int, error)
	Complete(ctx context.Context, sessionID string, endTime time.Time) error
	FinalizeEvaluation(ctx context.Context, sessionID string, questions []models.Question, overallScore float64) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("interview_sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	var s models.InterviewSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) ListByOwner(ctx context.Context, ownerID string, limit int64) ([]models.InterviewSession, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx,
		bson.M{"owner_id": ownerID},
		options.Find().
			SetSort(bson.D{{Key: "start_time", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.InterviewSession
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateQuestionAnswer sets the answer fields of one embedded question via a
// single conditional update keyed by (session_id, question_id). Two concurrent
// saves to different questions of the same session each match their own
// subdocument through the positional operator; a save to a missing session or
// question matches nothing and reports ErrNotFound.
func (r *sessionRepo) UpdateQuestionAnswer(ctx context.Context, sessionID, questionID string, upd AnswerUpdate) error {
	set := bson.M{
		"questions.$.user_answer":   upd.UserAnswer,
		"questions.$.transcription": upd.Transcription,
		"questions.$.is_answered":   upd.IsAnswered,
	}
	if upd.MediaURL != nil {
		set["questions.$.media_url"] = *upd.MediaURL
	}

	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "questions.question_id": questionID},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// ShiftIndex moves current_index by delta, but only while the session is
// in-progress and the index sits inside [lo, hi]. A no-match means the move
// was out of bounds or the session already left in-progress. The index after
// the move is read back from the same update, so concurrent callers each see
// the position their own $inc produced.
func (r *sessionRepo) ShiftIndex(ctx context.Context, sessionID string, delta, lo, hi int) (int, error) {
	var s models.InterviewSession
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{
			"session_id":    sessionID,
			"status":        models.SessionInProgress,
			"current_index": bson.M{"$gte": lo, "$lte": hi},
		},
		bson.M{"$inc": bson.M{"current_index": delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, utils.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return s.CurrentIndex, nil
}

// Complete is guarded on status in-progress so the machine only moves forward;
// calling it on a completed or evaluated session matches nothing and reports
// ErrNotFound, which CompleteAndEvaluate treats as "already past this step".
func (r *sessionRepo) Complete(ctx context.Context, sessionID string, endTime time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "status": models.SessionInProgress},
		bson.M{"$set": bson.M{
			"status":   models.SessionCompleted,
			"end_time": endTime.UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// FinalizeEvaluation persists every evaluated question plus the terminal
// status and overall score in one update, guarded on status completed.
func (r *sessionRepo) FinalizeEvaluation(ctx context.Context, sessionID string, questions []models.Question, overallScore float64) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "status": models.SessionCompleted},
		bson.M{"$set": bson.M{
			"questions":     questions,
			"overall_score": overallScore,
			"status":        models.SessionEvaluated,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}
