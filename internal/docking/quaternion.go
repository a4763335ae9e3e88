package docking

import (
	"math"
	"math/rand"
)

// Quaternion is a rotation in (w, x, y, z) order. Conformation quaternions
// are kept unit length; renormalization after every optimizer step prevents
// drift.
type Quaternion [4]float64

// IdentityQuaternion is the no-rotation quaternion.
var IdentityQuaternion = Quaternion{1, 0, 0, 0}

// Mul returns the Hamilton product q ⊗ r.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return Quaternion{
		q[0]*r[0] - q[1]*r[1] - q[2]*r[2] - q[3]*r[3],
		q[0]*r[1] + q[1]*r[0] + q[2]*r[3] - q[3]*r[2],
		q[0]*r[2] - q[1]*r[3] + q[2]*r[0] + q[3]*r[1],
		q[0]*r[3] + q[1]*r[2] - q[2]*r[1] + q[3]*r[0],
	}
}

// Conj returns the conjugate of q, which for a unit quaternion is its inverse.
func (q Quaternion) Conj() Quaternion {
	return Quaternion{q[0], -q[1], -q[2], -q[3]}
}

// Normalized returns q scaled to unit length. A degenerate zero quaternion
// collapses to the identity.
func (q Quaternion) Normalized() Quaternion {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		return IdentityQuaternion
	}
	inv := 1 / n
	return Quaternion{q[0] * inv, q[1] * inv, q[2] * inv, q[3] * inv}
}

// Rotate applies the rotation q to v. q must be unit length.
func (q Quaternion) Rotate(v Vec3) Vec3 {
	// v' = v + 2·u×(u×v + w·v) with u the vector part.
	u := Vec3{q[1], q[2], q[3]}
	t := u.Cross(v).Add(v.Scale(q[0]))
	return v.Add(u.Cross(t).Scale(2))
}

// QuaternionFromAxisAngle returns the rotation of angle radians about the
// unit axis.
func QuaternionFromAxisAngle(axis Vec3, angle float64) Quaternion {
	s, c := math.Sincos(0.5 * angle)
	return Quaternion{c, s * axis[0], s * axis[1], s * axis[2]}
}

// QuaternionFromRotationVector interprets v as an axis-angle rotation with
// angle |v| radians. The zero vector maps to the identity.
func QuaternionFromRotationVector(v Vec3) Quaternion {
	angle := v.Norm()
	if angle < 1e-12 {
		return IdentityQuaternion
	}
	return QuaternionFromAxisAngle(v.Scale(1/angle), angle)
}

// RandomQuaternion draws a uniformly distributed unit quaternion using
// Shoemake's subgroup method, so random restarts sample orientations without
// bias.
func RandomQuaternion(rng *rand.Rand) Quaternion {
	u1 := rng.Float64()
	u2 := 2 * math.Pi * rng.Float64()
	u3 := 2 * math.Pi * rng.Float64()
	a := math.Sqrt(1 - u1)
	b := math.Sqrt(u1)
	s2, c2 := math.Sincos(u2)
	s3, c3 := math.Sincos(u3)
	return Quaternion{a * s2, a * c2, b * s3, b * c3}
}

// torqueToQuaternionGradient converts the energy torque about a frame origin
// into the energy gradient with respect to the four quaternion components.
// For a world-frame infinitesimal rotation δθ, δE = τ·δθ and
// δq = ½·[0,δθ] ⊗ q, hence ∂E/∂qⱼ = 2·τ·vec(eⱼ ⊗ q*).
func torqueToQuaternionGradient(q Quaternion, torque Vec3) Quaternion {
	conj := q.Conj()
	var grad Quaternion
	for j := 0; j < 4; j++ {
		var e Quaternion
		e[j] = 1
		p := e.Mul(conj)
		grad[j] = 2 * torque.Dot(Vec3{p[1], p[2], p[3]})
	}
	return grad
}
