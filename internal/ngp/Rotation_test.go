package ngp

import (
	"math"
	"math/rand"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const tolerance = 1e-9

func randomUnitQuaternion(rng *rand.Rand) quat.Number {
	q := quat.Number{Real: rng.NormFloat64(), Imag: rng.NormFloat64(), Jmag: rng.NormFloat64(), Kmag: rng.NormFloat64()}
	return quat.Scale(1/quat.Abs(q), q)
}

func TestQuaternionToRotationMatrixIdentity(t *testing.T) {
	r := QuaternionToRotationMatrix(quat.Number{Real: 1})
	test.That(t, mat.Equal(r, mat.NewDiagDense(3, []float64{1, 1, 1})), test.ShouldBeTrue)
}

func TestQuaternionToRotationMatrixQuarterTurnAboutZ(t *testing.T) {
	th := math.Pi / 2
	r := QuaternionToRotationMatrix(quat.Number{Real: math.Cos(th / 2), Kmag: math.Sin(th / 2)})

	// x axis goes to y axis
	var v mat.VecDense
	v.MulVec(r, mat.NewVecDense(3, []float64{1, 0, 0}))
	test.That(t, v.AtVec(0), test.ShouldAlmostEqual, 0, tolerance)
	test.That(t, v.AtVec(1), test.ShouldAlmostEqual, 1, tolerance)
	test.That(t, v.AtVec(2), test.ShouldAlmostEqual, 0, tolerance)
}

func TestQuaternionToRotationMatrixIsRotation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		r := QuaternionToRotationMatrix(randomUnitQuaternion(rng))

		var rtr mat.Dense
		rtr.Mul(r.T(), r)
		test.That(t, mat.EqualApprox(&rtr, mat.NewDiagDense(3, []float64{1, 1, 1}), tolerance), test.ShouldBeTrue)
		test.That(t, mat.Det(r), test.ShouldAlmostEqual, 1, tolerance)
	}
}

func TestCameraToWorldIdentityPose(t *testing.T) {
	c2w := CameraToWorld(quat.Number{Real: 1}, r3.Vec{})
	want := [4][4]float64{
		{1, 0, 0, 0},
		{0, -1, 0, 0},
		{0, 0, -1, 0},
		{0, 0, 0, 1},
	}
	for i := range want {
		for j := range want[i] {
			test.That(t, c2w[i][j], test.ShouldAlmostEqual, want[i][j], 0)
		}
	}
}

func TestCameraToWorldTranslationOnly(t *testing.T) {
	c2w := CameraToWorld(quat.Number{Real: 1}, r3.Vec{X: 1, Y: 2, Z: 3})
	test.That(t, c2w[0][3], test.ShouldEqual, -1.0)
	test.That(t, c2w[1][3], test.ShouldEqual, -2.0)
	test.That(t, c2w[2][3], test.ShouldEqual, -3.0)
}

func TestCameraToWorldInvertsPose(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		q := randomUnitQuaternion(rng)
		tv := r3.Vec{X: rng.NormFloat64() * 5, Y: rng.NormFloat64() * 5, Z: rng.NormFloat64() * 5}
		world := mat.NewVecDense(3, []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})

		// COLMAP camera coordinates of the world point
		var pc mat.VecDense
		pc.MulVec(QuaternionToRotationMatrix(q), world)
		pc.AddVec(&pc, mat.NewVecDense(3, []float64{tv.X, tv.Y, tv.Z}))

		// the same point in the renderer's camera frame has Y and Z flipped
		local := [4]float64{pc.AtVec(0), -pc.AtVec(1), -pc.AtVec(2), 1}

		c2w := CameraToWorld(q, tv)
		test.That(t, c2w[3], test.ShouldResemble, [4]float64{0, 0, 0, 1})
		for row := 0; row < 3; row++ {
			sum := 0.0
			for col := 0; col < 4; col++ {
				sum += c2w[row][col] * local[col]
			}
			test.That(t, sum, test.ShouldAlmostEqual, world.AtVec(row), 1e-8)
		}
	}
}

func TestFieldOfView(t *testing.T) {
	ax, ay := FieldOfView(500, 800, 600)
	test.That(t, ax, test.ShouldEqual, 2*math.Atan(800.0/1000.0))
	test.That(t, ay, test.ShouldEqual, 2*math.Atan(600.0/1000.0))

	// a focal length equal to half the width gives a right angle
	ax, _ = FieldOfView(400, 800, 600)
	test.That(t, ax, test.ShouldAlmostEqual, math.Pi/2, tolerance)
}

func TestFieldOfViewDecreasesWithFocalLength(t *testing.T) {
	prevX, prevY := math.Inf(1), math.Inf(1)
	for f := 10.0; f < 5000; f *= 1.5 {
		ax, ay := FieldOfView(f, 1920, 1080)
		test.That(t, ax, test.ShouldBeLessThan, prevX)
		test.That(t, ay, test.ShouldBeLessThan, prevY)
		prevX, prevY = ax, ay
	}
}
