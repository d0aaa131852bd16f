package ngp

import "math"

// FieldOfView returns the full horizontal and vertical pinhole field of view, in radians, for a sensor of
// width x height pixels and a focal length in pixels shared by both axes.
func FieldOfView(focalLength, width, height float64) (angleX, angleY float64) {
	angleX = 2 * math.Atan(width/(2*focalLength))
	angleY = 2 * math.Atan(height/(2*focalLength))
	return angleX, angleY
}
