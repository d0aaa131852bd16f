// Package scene contains the implementation of interacting with the MongoDB scene collection.
// The SceneManager struct is responsible for interacting with the MongoDB scenes collection.
// A Scene records one conversion: where its inputs were, where transforms.json went, and how it ended.
package scene
