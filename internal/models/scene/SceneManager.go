// This file contains the SceneManager implementation, which is responsible for interacting with the MongoDB scenes collection.
// Scenes are always addressed by ID.

package scene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
)

type SceneManager struct {
	collection *mongo.Collection
	logger     *log.Logger
}

// NewSceneManager creates a new SceneManager on the nerfdb.scenes collection.
func NewSceneManager(client *mongo.Client, logger *log.Logger) *SceneManager {
	return &SceneManager{
		collection: client.Database("nerfdb").Collection("scenes"),
		logger:     logger,
	}
}

// CreateScene inserts a new pending scene and returns it with its generated ID.
func (sm *SceneManager) CreateScene(ctx context.Context, scene *Scene) (*Scene, error) {
	if scene.ID.IsZero() {
		scene.ID = primitive.NewObjectID()
	}
	if scene.Status == "" {
		scene.Status = StatusPending
	}
	now := time.Now().UTC()
	scene.CreatedAt = now
	scene.UpdatedAt = now

	if err := sm.SetScene(ctx, scene.ID, scene); err != nil {
		return nil, err
	}
	return scene, nil
}

// SetScene upserts the whole scene document.
func (sm *SceneManager) SetScene(ctx context.Context, id primitive.ObjectID, scene *Scene) error {
	if !IsValidStatus(scene.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, scene.Status)
	}
	_, err := sm.collection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": scene},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetScene retrieves a scene by ID. Returns ErrSceneNotFound if no such scene exists.
func (sm *SceneManager) GetScene(ctx context.Context, id primitive.ObjectID) (*Scene, error) {
	var scene Scene
	err := sm.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&scene)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSceneNotFound
		}
		return nil, err
	}
	return &scene, nil
}
