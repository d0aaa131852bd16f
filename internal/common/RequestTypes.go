// This file contains the expected structure of incoming requests to the API and of conversion jobs read from the broker.
// These structs are used to validate incoming requests, provide a consistent interface for handling requests, and to pass
// data to the appropriate handlers.

// Paths in a ConvertRequest are resolved by the ConverterService: SceneDir against the service data directory, the others
// against SceneDir. Empty optional paths take the COLMAP/instant-ngp defaults (sparse/0, images, transforms.json).

package common

type ConvertRequest struct {
	// ID reuses an existing scene record instead of creating one. Only set on jobs coming from the broker.
	ID         string `json:"id,omitempty" validate:"omitempty,hexadecimal,len=24"`
	SceneName  string `json:"scene_name" validate:"required,max=128"`
	SceneDir   string `json:"scene_dir" validate:"required"`
	ModelDir   string `json:"model_dir"`
	ImageDir   string `json:"image_dir"`
	OutputPath string `json:"output_path"`
}

type GetSceneRequest struct {
	SceneID string `params:"scene_id" validate:"required,hexadecimal,len=24"`
}

type GetQueuePositionRequest struct {
	QueueID string `query:"queueid" validate:"required,validQueueID"`
	SceneID string `query:"id" validate:"required,hexadecimal,len=24"`
}
