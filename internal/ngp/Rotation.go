package ngp

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// QuaternionToRotationMatrix returns the 3x3 rotation matrix of a unit quaternion (Real=w, Imag=x, Jmag=y, Kmag=z).
// q is not normalized first; a non-unit q gives a matrix that is not orthogonal.
func QuaternionToRotationMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*y*y - 2*z*z, 2*x*y - 2*z*w, 2*x*z + 2*y*w,
		2*x*y + 2*z*w, 1 - 2*x*x - 2*z*z, 2*y*z - 2*x*w,
		2*x*z - 2*y*w, 2*y*z + 2*x*w, 1 - 2*x*x - 2*y*y,
	})
}

// CameraToWorld inverts a COLMAP world-to-camera pose (q, t) into the row-major camera-to-world matrix
// [Rᵀ | -Rᵀt; 0 0 0 1], then negates the camera Y and Z axes (columns 1 and 2 of the rotation block).
func CameraToWorld(q quat.Number, t r3.Vec) [4][4]float64 {
	var rt mat.Dense
	rt.CloneFrom(QuaternionToRotationMatrix(q).T())

	var center mat.VecDense
	center.MulVec(&rt, mat.NewVecDense(3, []float64{t.X, t.Y, t.Z}))
	center.ScaleVec(-1, &center)

	var c2w [4][4]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			c2w[i][j] = rt.At(i, j)
		}
		c2w[i][3] = center.AtVec(i)
	}
	c2w[3] = [4]float64{0, 0, 0, 1}

	for i := 0; i < 3; i++ {
		c2w[i][1] = -c2w[i][1]
		c2w[i][2] = -c2w[i][2]
	}

	return c2w
}
