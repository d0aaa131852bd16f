package testutils

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/queue"
	"github.com/NeRF-or-Nothing/sfm-converter/internal/models/scene"
)

// SceneStore keeps scenes in a map, copying on every read and write like a round trip through the database would.
type SceneStore struct {
	mu     sync.Mutex
	scenes map[primitive.ObjectID]scene.Scene
	// SetErr, when set, is returned by SetScene and CreateScene.
	SetErr error
}

func NewSceneStore() *SceneStore {
	return &SceneStore{scenes: make(map[primitive.ObjectID]scene.Scene)}
}

func (s *SceneStore) CreateScene(ctx context.Context, sc *scene.Scene) (*scene.Scene, error) {
	if sc.ID.IsZero() {
		sc.ID = primitive.NewObjectID()
	}
	if sc.Status == "" {
		sc.Status = scene.StatusPending
	}
	sc.CreatedAt = time.Now().UTC()
	sc.UpdatedAt = sc.CreatedAt
	if err := s.SetScene(ctx, sc.ID, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *SceneStore) SetScene(_ context.Context, id primitive.ObjectID, sc *scene.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	if !scene.IsValidStatus(sc.Status) {
		return scene.ErrInvalidStatus
	}
	stored := *sc
	stored.SkippedImages = slices.Clone(sc.SkippedImages)
	s.scenes[id] = stored
	return nil
}

func (s *SceneStore) GetScene(_ context.Context, id primitive.ObjectID) (*scene.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.scenes[id]
	if !ok {
		return nil, scene.ErrSceneNotFound
	}
	out := stored
	out.SkippedImages = slices.Clone(stored.SkippedImages)
	return &out, nil
}

// Len returns the number of stored scenes.
func (s *SceneStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenes)
}

// QueueStore keeps queues in a map with the same validity rules as queue.QueueListManager.
type QueueStore struct {
	mu     sync.Mutex
	queues map[string][]primitive.ObjectID
	// AppendErr, when set, is returned by AppendToQueue.
	AppendErr error
}

func NewQueueStore() *QueueStore {
	return &QueueStore{queues: map[string][]primitive.ObjectID{
		queue.QueueAll:     {},
		queue.QueueConvert: {},
	}}
}

func (q *QueueStore) AppendToQueue(_ context.Context, queueID string, itemID primitive.ObjectID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.AppendErr != nil {
		return q.AppendErr
	}
	items, ok := q.queues[queueID]
	if !ok {
		return queue.ErrInvalidQueueID
	}
	if slices.Contains(items, itemID) {
		return queue.ErrIDAlreadyInQueue
	}
	q.queues[queueID] = append(items, itemID)
	return nil
}

func (q *QueueStore) DeleteFromQueue(_ context.Context, queueID string, itemID primitive.ObjectID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, ok := q.queues[queueID]
	if !ok {
		return queue.ErrInvalidQueueID
	}
	if len(items) == 0 {
		return queue.ErrInvalidOpOnEmptyQueue
	}
	i := slices.Index(items, itemID)
	if i == -1 {
		return queue.ErrIDNotFoundInQueue
	}
	q.queues[queueID] = slices.Delete(items, i, i+1)
	return nil
}

func (q *QueueStore) GetQueuePosition(_ context.Context, queueID string, itemID primitive.ObjectID) (int, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, ok := q.queues[queueID]
	if !ok {
		return 0, 0, queue.ErrInvalidQueueID
	}
	ql := queue.QueueList{ID: queueID, Queue: items}
	pos, err := ql.Position(itemID)
	if err != nil {
		return 0, 0, err
	}
	return pos, len(items), nil
}

// Items returns a copy of the queue contents.
func (q *QueueStore) Items(queueID string) []primitive.ObjectID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.queues[queueID])
}
