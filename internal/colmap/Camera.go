// This file contains the Camera record and the ordered Cameras collection built from cameras.txt.

package colmap

import (
	"fmt"
)

// ModelSimpleRadial is the only camera model the converter understands: f, cx, cy, k.
const ModelSimpleRadial = "SIMPLE_RADIAL"

// Camera is one line of cameras.txt.
type Camera struct {
	ID     int
	Model  string
	Width  float64
	Height float64
	Params []float64
}

// SimpleRadial unpacks the parameters of a SIMPLE_RADIAL camera.
// The distortion coefficient k is returned for completeness; the converter does not use it.
func (c Camera) SimpleRadial() (f, cx, cy, k float64, err error) {
	if c.Model != ModelSimpleRadial {
		return 0, 0, 0, 0, &UnsupportedModelError{CameraID: c.ID, Model: c.Model}
	}
	if len(c.Params) != 4 {
		return 0, 0, 0, 0, &ParseError{
			Field: "params",
			Err:   fmt.Errorf("camera %d: %s expects 4 params, got %d", c.ID, ModelSimpleRadial, len(c.Params)),
		}
	}
	return c.Params[0], c.Params[1], c.Params[2], c.Params[3], nil
}

// Cameras holds cameras keyed by id. Iteration follows the order in which an id was first seen;
// a repeated id replaces the earlier record in place.
type Cameras struct {
	order []int
	byID  map[int]Camera
}

// NewCameras returns an empty collection.
func NewCameras() *Cameras {
	return &Cameras{byID: make(map[int]Camera)}
}

// Put inserts or replaces a camera.
func (c *Cameras) Put(cam Camera) {
	if _, ok := c.byID[cam.ID]; !ok {
		c.order = append(c.order, cam.ID)
	}
	c.byID[cam.ID] = cam
}

// Get returns the camera with the given id.
func (c *Cameras) Get(id int) (Camera, bool) {
	cam, ok := c.byID[id]
	return cam, ok
}

// First returns the first camera of the table, which supplies the global intrinsics of a scene.
func (c *Cameras) First() (Camera, bool) {
	if len(c.order) == 0 {
		return Camera{}, false
	}
	return c.byID[c.order[0]], true
}

// Len returns the number of distinct camera ids.
func (c *Cameras) Len() int {
	return len(c.order)
}

// All returns the cameras in table order.
func (c *Cameras) All() []Camera {
	out := make([]Camera, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
