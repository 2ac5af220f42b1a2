package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions := db.Collection("interview_sessions")
	_, err := sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_session_id").
				SetUnique(true),
		},
		// History listing: owner's sessions, newest first
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "start_time", Value: -1}},
			Options: options.Index().SetName("by_owner_started"),
		},
		// SaveAnswer lookup path
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "questions.question_id", Value: 1}},
			Options: options.Index().SetName("by_session_question"),
		},
	})
	return err
}
