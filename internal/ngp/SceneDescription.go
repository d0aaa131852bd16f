// This file contains the transforms.json document and its encoder.

package ngp

import (
	"encoding/json"
	"io"
)

// AABBScale is written verbatim into every scene description.
const AABBScale = 4

// ImagePathPrefix is prepended to image names in frame file paths; the renderer resolves it relative to the
// document next to an images/ directory.
const ImagePathPrefix = "images/"

// Frame is one posed image of the scene.
type Frame struct {
	FilePath        string        `json:"file_path"`
	TransformMatrix [4][4]float64 `json:"transform_matrix"`
}

// SceneDescription is the transforms.json document. Field order here is the field order on disk.
type SceneDescription struct {
	CameraAngleX float64 `json:"camera_angle_x"`
	CameraAngleY float64 `json:"camera_angle_y"`
	FlX          float64 `json:"fl_x"`
	FlY          float64 `json:"fl_y"`
	Cx           float64 `json:"cx"`
	Cy           float64 `json:"cy"`
	W            float64 `json:"w"`
	H            float64 `json:"h"`
	AABBScale    int     `json:"aabb_scale"`
	Frames       []Frame `json:"frames"`
}

// Encode writes the document as 4-space indented JSON followed by a newline.
// The same description always encodes to the same bytes. A nil Frames is written as [] and d is left untouched.
// NaN or infinite values cannot be represented and make Encode fail.
func (d *SceneDescription) Encode(w io.Writer) error {
	out := *d
	if out.Frames == nil {
		out.Frames = []Frame{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	return enc.Encode(&out)
}
