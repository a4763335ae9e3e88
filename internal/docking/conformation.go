package docking

import "math"

// flexibilityWeight is the empirical weight of the rotatable-bond penalty
// applied to the reported free energy, rewarding rigid binders.
const flexibilityWeight = 0.05846

// outOfBoxSlope is the quadratic penalty (per Å²) applied to ligand atoms
// that leave the search box during refinement. The gradient of the penalty
// points back inside, so BFGS stays well defined everywhere.
const outOfBoxSlope = 100.0

// Frame is one rigid body of the ligand's torsion tree. Frames are stored in
// topological order: Parent < own index for every non-root frame, so a single
// forward pass performs the kinematics and a single backward pass propagates
// gradients from the leaves to the root.
type Frame struct {
	Parent int // -1 for the root frame

	// RotorX and RotorY are atom indices of the rotatable bond: RotorX lives
	// in the parent frame, RotorY in this frame and serves as its origin.
	// Both are -1 on the root.
	RotorX, RotorY int

	// ParseOrigin is the frame origin at parse time (the RotorY coordinate;
	// for the root, the first root atom's coordinate).
	ParseOrigin Vec3

	// LocalAxis is the unit rotation axis RotorY-RotorX in the parse-time
	// pose. Zero on the root.
	LocalAxis Vec3
}

// InteractionPair is an intra-ligand atom pair scored by the pairwise
// potential because a torsion can change its separation.
type InteractionPair struct {
	I, J int
}

// LigandAtom is a ligand heavy atom together with the frame that owns it.
// Coord holds the parse-time coordinate; posed coordinates are produced by a
// Workspace.
type LigandAtom struct {
	Atom
	Frame int
}

// Ligand is the docked molecule: heavy atoms, the torsion tree over them,
// the intra-molecular pairs to score, and the rotatable-bond bookkeeping the
// flexibility penalty needs. Immutable once built.
type Ligand struct {
	Name   string
	Atoms  []LigandAtom
	Frames []Frame
	Pairs  []InteractionPair

	// InactiveTorsions counts rotatable bonds that move no heavy atom
	// (hydrogen-only branches collapsed by the parser). They still count,
	// at half weight, toward the flexibility penalty.
	InactiveTorsions int
}

// NumHeavyAtoms returns the heavy-atom count used to scale the clustering
// threshold.
func (l *Ligand) NumHeavyAtoms() int { return len(l.Atoms) }

// NumTorsions returns the number of free torsion parameters.
func (l *Ligand) NumTorsions() int { return len(l.Frames) - 1 }

// DegreesOfFreedom returns the conformance vector length:
// 3 translation + 4 quaternion + one per torsion.
func (l *Ligand) DegreesOfFreedom() int { return 7 + l.NumTorsions() }

// FlexibilityPenalty returns the multiplicative factor applied to the best
// pose's interaction energy when reporting. It is 1 for a rigid ligand and
// shrinks as rotatable bonds are added.
func (l *Ligand) FlexibilityPenalty() float64 {
	nrb := float64(l.NumTorsions()) + 0.5*float64(l.InactiveTorsions)
	return 1 / (1 + flexibilityWeight*nrb)
}

// AtomTypes returns the distinct atom types present in the ligand, the set
// of grid maps a docking run requires.
func (l *Ligand) AtomTypes() []AtomType {
	var seen [NumAtomTypes]bool
	var types []AtomType
	for _, a := range l.Atoms {
		if !seen[a.Type] {
			seen[a.Type] = true
			types = append(types, a.Type)
		}
	}
	return types
}

// Conformation is a point in the ligand's configuration space: rigid-body
// translation and rotation plus one angle per rotatable bond.
type Conformation struct {
	Position    Vec3
	Orientation Quaternion
	Torsions    []float64
}

// Clone returns a deep copy of c.
func (c *Conformation) Clone() *Conformation {
	out := &Conformation{Position: c.Position, Orientation: c.Orientation}
	out.Torsions = append([]float64(nil), c.Torsions...)
	return out
}

// Vector flattens c into dst (length DegreesOfFreedom) for the optimizer.
func (c *Conformation) Vector(dst []float64) {
	copy(dst[0:3], c.Position[:])
	copy(dst[3:7], c.Orientation[:])
	copy(dst[7:], c.Torsions)
}

// SetFromVector loads c from a flat optimizer vector, renormalizing the
// quaternion block so rotation drift never accumulates.
func (c *Conformation) SetFromVector(x []float64) {
	copy(c.Position[:], x[0:3])
	copy(c.Orientation[:], x[3:7])
	c.Orientation = c.Orientation.Normalized()
	copy(c.Torsions, x[7:])
}

// Workspace is the per-task scratch state for posing and scoring one ligand.
// It is private to its Monte Carlo task; nothing in it is shared, so the hot
// loop needs no locks and no allocation.
type Workspace struct {
	lig *Ligand

	atomPos  []Vec3
	atomGrad []Vec3

	frameOrigin []Vec3
	frameQ      []Quaternion
	frameAxis   []Vec3 // world-frame rotation axis per frame
	force       []Vec3
	torque      []Vec3
}

// NewWorkspace allocates scratch buffers for lig.
func NewWorkspace(lig *Ligand) *Workspace {
	nf := len(lig.Frames)
	return &Workspace{
		lig:         lig,
		atomPos:     make([]Vec3, len(lig.Atoms)),
		atomGrad:    make([]Vec3, len(lig.Atoms)),
		frameOrigin: make([]Vec3, nf),
		frameQ:      make([]Quaternion, nf),
		frameAxis:   make([]Vec3, nf),
		force:       make([]Vec3, nf),
		torque:      make([]Vec3, nf),
	}
}

// pose runs the forward kinematics for conf, filling the frame origins,
// orientations, world axes, and atom positions.
func (w *Workspace) pose(conf *Conformation) {
	lig := w.lig
	w.frameOrigin[0] = conf.Position
	w.frameQ[0] = conf.Orientation

	for i := 1; i < len(lig.Frames); i++ {
		f := &lig.Frames[i]
		p := f.Parent
		pq := w.frameQ[p]
		// The branch origin is rigidly attached to the parent frame.
		w.frameOrigin[i] = w.frameOrigin[p].Add(pq.Rotate(f.ParseOrigin.Sub(lig.Frames[p].ParseOrigin)))
		axis := pq.Rotate(f.LocalAxis)
		w.frameAxis[i] = axis
		w.frameQ[i] = QuaternionFromAxisAngle(axis, conf.Torsions[i-1]).Mul(pq).Normalized()
	}

	for ai := range lig.Atoms {
		a := &lig.Atoms[ai]
		fi := a.Frame
		w.atomPos[ai] = w.frameOrigin[fi].Add(w.frameQ[fi].Rotate(a.Coord.Sub(lig.Frames[fi].ParseOrigin)))
	}
}

// AtomPositions poses conf and returns the atom coordinates. The returned
// slice is reused by later calls; callers who keep it must copy.
func (w *Workspace) AtomPositions(conf *Conformation) []Vec3 {
	w.pose(conf)
	return w.atomPos
}

// Evaluate computes the total energy of conf — receptor interaction from the
// grid maps plus intra-ligand pair energy — and, when grad is non-nil, its
// gradient with respect to the full parameter vector. It returns the total
// energy, the receptor-only part, and whether the result is finite; a
// non-finite result marks a corrupt pose the caller must discard.
func (w *Workspace) Evaluate(conf *Conformation, box *Box, gm *GridMapBuilder, sf *ScoringFunction, grad []float64) (total, inter float64, ok bool) {
	lig := w.lig
	w.pose(conf)
	for i := range w.atomGrad {
		w.atomGrad[i] = Vec3{}
	}

	// Receptor contribution: trilinear interpolation against the atom's
	// grid map, or a quadratic push-back for atoms outside the box.
	for ai := range lig.Atoms {
		p := w.atomPos[ai]
		if !p.IsFinite() {
			return math.NaN(), math.NaN(), false
		}
		if !box.Contains(p) {
			d2 := box.SurfaceDistanceSquared(p)
			inter += outOfBoxSlope * d2
			for k := 0; k < 3; k++ {
				switch {
				case p[k] < box.Corner1[k]:
					w.atomGrad[ai][k] += 2 * outOfBoxSlope * (p[k] - box.Corner1[k])
				case p[k] >= box.Corner2[k]:
					w.atomGrad[ai][k] += 2 * outOfBoxSlope * (p[k] - box.Corner2[k])
				}
			}
			continue
		}
		e, g := gm.Map(lig.Atoms[ai].Type).Interpolate(box, p)
		inter += e
		w.atomGrad[ai] = w.atomGrad[ai].Add(g)
	}

	// Intra-ligand contribution over the precomputed pair list.
	intra := 0.0
	for _, pr := range lig.Pairs {
		d := w.atomPos[pr.I].Sub(w.atomPos[pr.J])
		r2 := d.NormSquared()
		if r2 >= CutoffSquared {
			continue
		}
		e, dor := sf.Evaluate(lig.Atoms[pr.I].Type, lig.Atoms[pr.J].Type, r2)
		intra += e
		g := d.Scale(dor)
		w.atomGrad[pr.I] = w.atomGrad[pr.I].Add(g)
		w.atomGrad[pr.J] = w.atomGrad[pr.J].Sub(g)
	}

	total = inter + intra
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return total, inter, false
	}
	if grad == nil {
		return total, inter, true
	}

	// Aggregate atom gradients into per-frame force and torque, then sweep
	// leaves to root; topological order makes the reverse loop sufficient.
	for i := range w.force {
		w.force[i] = Vec3{}
		w.torque[i] = Vec3{}
	}
	for ai := range lig.Atoms {
		fi := lig.Atoms[ai].Frame
		w.force[fi] = w.force[fi].Add(w.atomGrad[ai])
		w.torque[fi] = w.torque[fi].Add(w.atomPos[ai].Sub(w.frameOrigin[fi]).Cross(w.atomGrad[ai]))
	}
	for i := len(lig.Frames) - 1; i >= 1; i-- {
		p := lig.Frames[i].Parent
		grad[7+(i-1)] = w.frameAxis[i].Dot(w.torque[i])
		w.force[p] = w.force[p].Add(w.force[i])
		w.torque[p] = w.torque[p].Add(w.torque[i]).Add(w.frameOrigin[i].Sub(w.frameOrigin[p]).Cross(w.force[i]))
	}

	copy(grad[0:3], w.force[0][:])
	qGrad := torqueToQuaternionGradient(conf.Orientation, w.torque[0])
	copy(grad[3:7], qGrad[:])
	return total, inter, true
}
