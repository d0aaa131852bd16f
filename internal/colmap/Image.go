// This file contains the Image pose record and the ordered Images collection built from images.txt.

package colmap

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Image is the pose of one registered image. Qvec and Tvec describe the world-to-camera transform
// exactly as COLMAP reports it; Qvec is stored as Real=qw, Imag=qx, Jmag=qy, Kmag=qz.
type Image struct {
	Name     string
	Qvec     quat.Number
	Tvec     r3.Vec
	CameraID int
}

// Images holds poses keyed by image name, in the order a name was first seen.
// A repeated name replaces the earlier pose in place.
type Images struct {
	order  []string
	byName map[string]Image
}

// NewImages returns an empty collection.
func NewImages() *Images {
	return &Images{byName: make(map[string]Image)}
}

// Put inserts or replaces a pose.
func (im *Images) Put(img Image) {
	if _, ok := im.byName[img.Name]; !ok {
		im.order = append(im.order, img.Name)
	}
	im.byName[img.Name] = img
}

// Get returns the pose of the named image.
func (im *Images) Get(name string) (Image, bool) {
	img, ok := im.byName[name]
	return img, ok
}

// Len returns the number of distinct image names.
func (im *Images) Len() int {
	return len(im.order)
}

// All returns the poses in table order.
func (im *Images) All() []Image {
	out := make([]Image, 0, len(im.order))
	for _, name := range im.order {
		out = append(out, im.byName[name])
	}
	return out
}
