// Package queue contains the implementation of processing queues of conversions in the MongoDB database.
// The QueueListManager struct is responsible for interacting with the MongoDB queues collection.
// The QueueList struct is used to represent a list of scene IDs in a queue, and is used for reporting conversion progress.
package queue
