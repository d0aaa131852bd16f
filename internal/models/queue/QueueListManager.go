// This file contains the QueueListManager implementation, which is responsible for interacting with the MongoDB queues collection.
// The QueueListManager struct contains a pointer to the nerfdb.queues MongoDB collection and a logger. It provides methods to
// append, remove and locate scene IDs in a queue. Interaction with queues is always by queue ID.

// Note that the only valid queues are those in the queueNames slice.

package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NeRF-or-Nothing/sfm-converter/internal/log"
)

// Queue IDs
const (
	// QueueAll holds every scene that has been submitted and is not finished yet.
	QueueAll = "queue_list"
	// QueueConvert holds scenes waiting for, or running, a conversion.
	QueueConvert = "convert_list"
)

// Custom errors
var (
	// ErrInvalidQueueID is returned when an invalid queue ID is used.
	ErrInvalidQueueID = errors.New("not a valid queue ID")
	// ErrIDAlreadyInQueue is returned when itemID is already in the queue.
	ErrIDAlreadyInQueue = errors.New("ID is already in the queue")
	// ErrIDNotFoundInQueue is returned when itemID is not in the queue.
	ErrIDNotFoundInQueue = errors.New("ID not found in queue")
	// ErrMultipleIDsInQueue is returned when the same ID is found multiple times in the queue.
	ErrMultipleIDsInQueue = errors.New("same ID found multiple times in queue")
	// ErrInvalidOpOnEmptyQueue is returned when an invalid operation occurs on an empty queue.
	ErrInvalidOpOnEmptyQueue = errors.New("invalid operation on empty queue")
)

type QueueListManager struct {
	collection *mongo.Collection
	queueNames []string
	logger     *log.Logger
}

// NewQueueListManager creates a new QueueListManager with the given MongoDB client and logger.
// The valid queues are QueueAll and QueueConvert.
func NewQueueListManager(client *mongo.Client, logger *log.Logger) *QueueListManager {
	db := client.Database("nerfdb")
	return &QueueListManager{
		collection: db.Collection("queues"),
		queueNames: []string{QueueAll, QueueConvert},
		logger:     logger,
	}
}

// IsValidQueue reports whether queueID names a managed queue.
func (qlm *QueueListManager) IsValidQueue(queueID string) bool {
	return slices.Contains(qlm.queueNames, queueID)
}

// setQueue sets the data in queueList in the database by the queue ID.
// It is not intended to be used outside of the QueueListManager.
func (qlm *QueueListManager) setQueue(ctx context.Context, queueID string, queueList *QueueList) error {
	if !qlm.IsValidQueue(queueID) {
		qlm.logger.Info("Invalid queue ID")
		return ErrInvalidQueueID
	}

	_, err := qlm.collection.UpdateOne(
		ctx,
		bson.M{"_id": queueID},
		bson.M{"$set": queueList},
		options.Update().SetUpsert(true),
	)
	return err
}

// getQueue loads a queue. A queue that has never been written is returned empty.
func (qlm *QueueListManager) getQueue(ctx context.Context, queueID string) (*QueueList, error) {
	if !qlm.IsValidQueue(queueID) {
		return nil, ErrInvalidQueueID
	}

	var queueList QueueList
	err := qlm.collection.FindOne(ctx, bson.M{"_id": queueID}).Decode(&queueList)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &QueueList{ID: queueID, Queue: []primitive.ObjectID{}}, nil
		}
		return nil, err
	}
	return &queueList, nil
}

// GetQueuePosition gets the position of itemID in the queue by the queue ID.
// Returns the position of the item in the queue and the total number of items in the queue.
func (qlm *QueueListManager) GetQueuePosition(ctx context.Context, queueID string, itemID primitive.ObjectID) (int, int, error) {
	queueList, err := qlm.getQueue(ctx, queueID)
	if err != nil {
		return 0, 0, err
	}

	position, err := queueList.Position(itemID)
	if err != nil {
		return 0, 0, err
	}

	return position, len(queueList.Queue), nil
}

// AppendToQueue appends a item's ID to the queue by the queue ID.
// Returns ErrIDAlreadyInQueue if the itemID is already in the queue.
// If the queue does not exist, and queueID is valid, it is created, and the item is added.
func (qlm *QueueListManager) AppendToQueue(ctx context.Context, queueID string, itemID primitive.ObjectID) error {
	queueList, err := qlm.getQueue(ctx, queueID)
	if err != nil {
		return err
	}

	if slices.Contains(queueList.Queue, itemID) {
		qlm.logger.Info(fmt.Sprintf("Attemped to add %s to queue %s, but it is already in the queue", itemID.Hex(), queueID))
		return ErrIDAlreadyInQueue
	}

	queueList.Queue = append(queueList.Queue, itemID)
	return qlm.setQueue(ctx, queueID, queueList)
}

// DeleteFromQueue removes the itemID from the queue by the queue ID.
// Returns ErrIDNotFoundInQueue if the itemID is not in the queue.
func (qlm *QueueListManager) DeleteFromQueue(ctx context.Context, queueID string, itemID primitive.ObjectID) error {
	queueList, err := qlm.getQueue(ctx, queueID)
	if err != nil {
		return err
	}

	if len(queueList.Queue) == 0 {
		return ErrInvalidOpOnEmptyQueue
	}

	index := slices.Index(queueList.Queue, itemID)
	if index == -1 {
		return ErrIDNotFoundInQueue
	}

	queueList.Queue = slices.Delete(queueList.Queue, index, index+1)

	return qlm.setQueue(ctx, queueID, queueList)
}
