// This file contains the QueueList struct and its members
// QueueList is used to represent a list of scenes waiting in a queue, and is used for reporting conversion progress.

package queue

import "go.mongodb.org/mongo-driver/bson/primitive"

// QueueList represents a list of scene IDs in a queue, oldest first.
type QueueList struct {
	ID    string               `bson:"_id"`
	Queue []primitive.ObjectID `bson:"queue"`
}

// Position returns the index of itemID in the queue.
// Returns ErrIDNotFoundInQueue if absent and ErrMultipleIDsInQueue if it occurs more than once.
func (ql *QueueList) Position(itemID primitive.ObjectID) (int, error) {
	position := -1
	for i, id := range ql.Queue {
		if id == itemID {
			if position != -1 {
				return 0, ErrMultipleIDsInQueue
			}
			position = i
		}
	}
	if position == -1 {
		return 0, ErrIDNotFoundInQueue
	}
	return position, nil
}
