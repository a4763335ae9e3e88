// Package docking implements the MolDock-Screen docking search engine: the
// cubic search box and its grids, the precomputed pairwise scoring function,
// per-atom-type receptor grid maps, BFGS local refinement, the Monte Carlo
// global search, and result clustering. Everything in this package is pure
// computation; job orchestration, parsing, and persistence live elsewhere.
package docking

import "math"

// Vec3 is a Cartesian point or displacement in Ångström.
type Vec3 [3]float64

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns s * v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{s * v[0], s * v[1], s * v[2]}
}

// Dot returns the inner product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns the cross product v × w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// NormSquared returns |v|².
func (v Vec3) NormSquared() float64 {
	return v.Dot(v)
}

// Norm returns |v|.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.NormSquared())
}

// Normalized returns v / |v|. The zero vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// DistanceSquared returns |v - w|².
func (v Vec3) DistanceSquared(w Vec3) float64 {
	return v.Sub(w).NormSquared()
}

// IsFinite reports whether all three components are finite numbers.
func (v Vec3) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}

// Index3 addresses a node or cell on one of the box's 3D lattices.
type Index3 [3]int
