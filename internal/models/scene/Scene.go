// This file contains the Scene struct, the record of one conversion, and its status values.

// When interacting with MongoDB, bson tags are used to specify the field names in the database.
// When answering HTTP requests and publishing to the broker, json tags are used.
// Optional fields are marked with omitempty; i.e if a conversion fails there is no intrinsics block to store.

package scene

import (
	"errors"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrSceneNotFound is returned when a requested scene is not in the database.
	ErrSceneNotFound = errors.New("scene not found")
	// ErrInvalidStatus is returned when a status outside ValidStatuses is stored.
	ErrInvalidStatus = errors.New("invalid scene status")
)

// Conversion states of a scene.
const (
	StatusPending    = "pending"
	StatusConverting = "converting"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

var ValidStatuses = []string{StatusPending, StatusConverting, StatusComplete, StatusFailed}

// Scene represents one conversion request and its outcome
type Scene struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	Status        string             `bson:"status" json:"status"`
	ModelDir      string             `bson:"model_dir" json:"model_dir"`
	ImageDir      string             `bson:"image_dir" json:"image_dir"`
	OutputPath    string             `bson:"output_path" json:"output_path"`
	Intrinsics    *Intrinsics        `bson:"intrinsics,omitempty" json:"intrinsics,omitempty"`
	FrameCount    int                `bson:"frame_count" json:"frame_count"`
	SkippedImages []string           `bson:"skipped_images,omitempty" json:"skipped_images,omitempty"`
	Error         string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// Intrinsics mirrors the global camera block of the written transforms.json.
type Intrinsics struct {
	CameraID     int     `bson:"camera_id" json:"camera_id"`
	CameraAngleX float64 `bson:"camera_angle_x" json:"camera_angle_x"`
	CameraAngleY float64 `bson:"camera_angle_y" json:"camera_angle_y"`
	FlX          float64 `bson:"fl_x" json:"fl_x"`
	FlY          float64 `bson:"fl_y" json:"fl_y"`
	Cx           float64 `bson:"cx" json:"cx"`
	Cy           float64 `bson:"cy" json:"cy"`
	W            float64 `bson:"w" json:"w"`
	H            float64 `bson:"h" json:"h"`
}

// IsValidStatus checks if the given status is one of ValidStatuses
func IsValidStatus(status string) bool {
	return slices.Contains(ValidStatuses, status)
}

// IsFinished reports whether the scene has reached a terminal state.
func (s *Scene) IsFinished() bool {
	return s.Status == StatusComplete || s.Status == StatusFailed
}
