// database.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// connectMongo establishes the MongoDB connection and verifies it with a ping.
func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return client, nil
}

// ensureIndexes creates the indexes the stores rely on. Safe to run on every
// startup; MongoDB treats existing identical indexes as a no-op.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{
			collection: "users",
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			collection: "conversations",
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			collection: "conversations",
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "updated_at", Value: 1}},
			},
		},
		{
			collection: "videos",
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "video_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for _, idx := range indexes {
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("error creating index on %s: %v", idx.collection, err)
		}
	}

	log.Printf("📑 Database indexes verified")
	return nil
}

// UserStore reads and writes per-user mode state.
type UserStore struct {
	users *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{users: db.Collection("users")}
}

// GetMode returns the user's stored mode. Users without a document are in
// mistral mode.
func (s *UserStore) GetMode(ctx context.Context, userID string) (string, error) {
	var state UserState
	err := s.users.FindOne(ctx, bson.M{"user_id": userID}).Decode(&state)
	if err == mongo.ErrNoDocuments {
		return ModeMistral, nil
	}
	if err != nil {
		return "", fmt.Errorf("error loading state for user %s: %v", userID, err)
	}

	if state.Mode == "" {
		return ModeMistral, nil
	}
	return state.Mode, nil
}

// SetMode upserts the user's mode.
func (s *UserStore) SetMode(ctx context.Context, userID, mode string) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"mode": mode, "updated_at": time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error saving mode for user %s: %v", userID, err)
	}

	LogDebug("💾 Mode %s saved for user %s", mode, userID)
	return nil
}

// VideoStore caches downloaded videos by YouTube ID so each video is only
// fetched and uploaded once.
type VideoStore struct {
	videos *mongo.Collection
}

func NewVideoStore(db *mongo.Database) *VideoStore {
	return &VideoStore{videos: db.Collection("videos")}
}

// FindByVideoID returns the stored video, or nil when it was never saved.
func (s *VideoStore) FindByVideoID(ctx context.Context, videoID string) (*VideoRecord, error) {
	var rec VideoRecord
	err := s.videos.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading video %s: %v", videoID, err)
	}
	return &rec, nil
}

// Save upserts the video record, keeping the original created_at on updates.
func (s *VideoStore) Save(ctx context.Context, rec VideoRecord) error {
	now := time.Now()
	_, err := s.videos.UpdateOne(ctx,
		bson.M{"video_id": rec.VideoID},
		bson.M{
			"$set": bson.M{
				"title":          rec.Title,
				"cloudinary_url": rec.CloudinaryURL,
				"thumbnail":      rec.Thumbnail,
				"updated_at":     now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error saving video %s: %v", rec.VideoID, err)
	}

	log.Printf("💾 Video %s saved (%s)", rec.VideoID, rec.Title)
	return nil
}
