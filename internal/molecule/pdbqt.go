package molecule

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/MolDock-Screen/internal/docking"
	apperrors "github.com/turtacn/MolDock-Screen/pkg/errors"
)

// Ligand bundles the docking model built from one PDBQT block with the
// physicochemical properties the pre-docking filters act on.
type Ligand struct {
	Model *docking.Ligand
	Props Properties
}

// rawAtom is one ATOM/HETATM record before hydrogen stripping and typing.
type rawAtom struct {
	serial int
	coord  docking.Vec3
	ad     adType
	frame  int
	xs     docking.AtomType
}

// ParseLigand reads a single-molecule PDBQT block and builds the docking
// model: heavy atoms with XScore types, the BRANCH torsion tree, and the
// intra-ligand interaction pairs. Hydrogens are consumed for donorization
// and molecular weight, then dropped. Rotatable bonds that move no heavy
// atom off their own axis are collapsed into the parent frame and counted
// as inactive torsions.
func ParseLigand(r io.Reader, name string) (*Ligand, error) {
	p := &blockParser{name: name}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := p.line(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMoleculeParseFailed, "reading ligand "+name)
	}
	return p.finish()
}

// parseFrame mirrors docking.Frame during parsing, keyed by atom serials
// because BRANCH records reference serials, not indices.
type parseFrame struct {
	parent       int
	rotorXSerial int
	rotorYSerial int
	open         bool
}

type blockParser struct {
	name    string
	atoms   []rawAtom // heavy atoms only
	hydros  []rawAtom // hydrogens, kept for typing and weight
	frames  []parseFrame
	stack   []int
	weight  float64
	charge  float64 // summed partial charges, hydrogens included
	logP    float64
	tpsa    float64
	hasLogP bool
	hasTPSA bool
	sawRoot bool
}

func (p *blockParser) fail(msg string) error {
	return apperrors.New(apperrors.ErrCodeMoleculeParseFailed, msg).
		WithDetail("ligand " + p.name)
}

func (p *blockParser) line(s string) error {
	switch {
	case strings.HasPrefix(s, "ROOT"):
		if p.sawRoot {
			return p.fail("duplicate ROOT record")
		}
		p.sawRoot = true
		p.frames = append(p.frames, parseFrame{parent: -1, rotorXSerial: -1, rotorYSerial: -1, open: true})
		p.stack = append(p.stack, 0)
	case strings.HasPrefix(s, "ENDROOT"):
		if len(p.stack) != 1 {
			return p.fail("ENDROOT with open branches")
		}
		p.frames[0].open = false
		p.stack = p.stack[:0]
	case strings.HasPrefix(s, "BRANCH"):
		x, y, err := parseBranchSerials(s)
		if err != nil {
			return p.fail("malformed BRANCH record")
		}
		parent := 0
		if len(p.stack) > 0 {
			parent = p.stack[len(p.stack)-1]
		}
		p.frames = append(p.frames, parseFrame{parent: parent, rotorXSerial: x, rotorYSerial: y, open: true})
		p.stack = append(p.stack, len(p.frames)-1)
	case strings.HasPrefix(s, "ENDBRANCH"):
		if len(p.stack) == 0 {
			return p.fail("ENDBRANCH without matching BRANCH")
		}
		p.frames[p.stack[len(p.stack)-1]].open = false
		p.stack = p.stack[:len(p.stack)-1]
	case strings.HasPrefix(s, "ATOM") || strings.HasPrefix(s, "HETATM"):
		return p.atom(s)
	case strings.HasPrefix(s, "REMARK"):
		if v, ok := remarkValue(s, "LogP"); ok {
			p.logP, p.hasLogP = v, true
		}
		if v, ok := remarkValue(s, "TPSA"); ok {
			p.tpsa, p.hasTPSA = v, true
		}
	}
	// TORSDOF and anything else are informational.
	return nil
}

// remarkValue extracts a "<key> = <value>" annotation from a REMARK line,
// the form ligand preparation tools write descriptors in.
func remarkValue(line, key string) (float64, bool) {
	i := strings.Index(strings.ToLower(line), strings.ToLower(key)+" =")
	if i < 0 {
		return 0, false
	}
	rest := strings.TrimSpace(line[i+len(key)+len(" ="):])
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		rest = rest[:j]
	}
	v, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseBranchSerials extracts the two atom serials of "BRANCH x y".
func parseBranchSerials(s string) (int, int, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return 0, 0, strconv.ErrSyntax
	}
	x, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// atom parses one ATOM/HETATM record. PDB fixed columns: serial 7-11,
// x/y/z 31-38/39-46/47-54, AutoDock type 78-79 (1-based, inclusive).
func (p *blockParser) atom(s string) error {
	if len(s) < 78 {
		return p.fail("truncated ATOM record")
	}
	serial, err := strconv.Atoi(strings.TrimSpace(s[6:11]))
	if err != nil {
		return p.fail("unparseable atom serial")
	}
	var coord docking.Vec3
	for i, span := range [3][2]int{{30, 38}, {38, 46}, {46, 54}} {
		v, err := strconv.ParseFloat(strings.TrimSpace(s[span[0]:span[1]]), 64)
		if err != nil {
			return p.fail("unparseable atom coordinate")
		}
		coord[i] = v
	}
	// Partial charge at columns 71-76; blank in hand-written files.
	if q, err := strconv.ParseFloat(strings.TrimSpace(s[70:76]), 64); err == nil {
		p.charge += q
	}
	token := s[77:]
	if len(token) > 2 {
		token = token[:2]
	}
	ad, ok := lookupADType(token)
	if !ok {
		return apperrors.New(apperrors.ErrCodeMoleculeUnsupportedAtom,
			"unsupported AutoDock atom type").
			WithDetail("ligand " + p.name + ", type " + strings.TrimSpace(token))
	}

	frame := 0
	if len(p.stack) > 0 {
		frame = p.stack[len(p.stack)-1]
	} else if !p.sawRoot {
		// Receptor-style flat block: everything lives in one rigid frame.
		if len(p.frames) == 0 {
			p.frames = append(p.frames, parseFrame{parent: -1, rotorXSerial: -1, rotorYSerial: -1})
		}
	}

	a := rawAtom{serial: serial, coord: coord, ad: ad, frame: frame}
	p.weight += atomicWeights[ad.elem]
	if ad.elem == elemHydrogen {
		p.hydros = append(p.hydros, a)
	} else {
		a.xs = ad.base
		p.atoms = append(p.atoms, a)
	}
	return nil
}

// resolveTypes finalises XScore types: carbons bonded to a heteroatom become
// polar, and donorizable heteroatoms with a polar hydrogen attached are
// promoted to their donor class. Connectivity is inferred from covalent
// distances, which is robust for the minimised structures screening
// libraries ship.
func (p *blockParser) resolveTypes() {
	for i := range p.atoms {
		a := &p.atoms[i]
		switch {
		case a.ad.elem == elemCarbon:
			for j := range p.atoms {
				b := &p.atoms[j]
				if isHetero(b.ad.elem) && covalentBond(a.ad.elem, b.ad.elem, a.coord.DistanceSquared(b.coord)) {
					a.xs = docking.TypeCarbonP
					break
				}
			}
		case a.ad.donorizable:
			for j := range p.hydros {
				h := &p.hydros[j]
				if h.ad.polarH && covalentBond(a.ad.elem, elemHydrogen, a.coord.DistanceSquared(h.coord)) {
					a.xs = donorize(a.xs)
					break
				}
			}
		}
	}
}

func (p *blockParser) finish() (*Ligand, error) {
	if len(p.stack) != 0 {
		return nil, p.fail("unclosed BRANCH record")
	}
	if len(p.atoms) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeMoleculeNoHeavyAtoms,
			"ligand has no heavy atoms").WithDetail("ligand " + p.name)
	}
	if len(p.frames) == 0 {
		return nil, p.fail("missing ROOT record")
	}
	p.resolveTypes()

	inactive := p.collapseInactiveFrames()

	lig, err := p.buildModel()
	if err != nil {
		return nil, err
	}
	lig.InactiveTorsions = inactive

	hbd, hba := 0, 0
	for _, a := range lig.Atoms {
		if a.Type.Donor() {
			hbd++
		}
		if a.Type.Acceptor() {
			hba++
		}
	}
	return &Ligand{
		Model: lig,
		Props: Properties{
			MolWeight:      p.weight,
			HeavyAtoms:     lig.NumHeavyAtoms(),
			RotatableBonds: lig.NumTorsions() + lig.InactiveTorsions,
			HBondDonors:    hbd,
			HBondAcceptors: hba,
			NetCharge:      int(math.Round(p.charge)),
			LogP:           p.logP,
			TPSA:           p.tpsa,
			HasLogP:        p.hasLogP,
			HasTPSA:        p.hasTPSA,
		},
	}, nil
}

// collapseInactiveFrames removes leaf frames whose rotation moves no heavy
// atom off the bond axis — hydroxyl and thiol branches whose single heavy
// atom is the rotor origin itself, and branches emptied entirely by hydrogen
// stripping. Their atoms (if any) fold into the parent frame and the torsion
// is counted as inactive for the flexibility penalty.
func (p *blockParser) collapseInactiveFrames() int {
	inactive := 0
	for {
		collapsed := false
		for fi := len(p.frames) - 1; fi >= 1; fi-- {
			if p.frameHasChildren(fi) {
				continue
			}
			n := 0
			for i := range p.atoms {
				if p.atoms[i].frame == fi {
					n++
				}
			}
			if n > 1 {
				continue
			}
			parent := p.frames[fi].parent
			for i := range p.atoms {
				if p.atoms[i].frame == fi {
					p.atoms[i].frame = parent
				} else if p.atoms[i].frame > fi {
					p.atoms[i].frame--
				}
			}
			p.frames = append(p.frames[:fi], p.frames[fi+1:]...)
			for j := range p.frames {
				if p.frames[j].parent > fi {
					p.frames[j].parent--
				}
			}
			inactive++
			collapsed = true
			break
		}
		if !collapsed {
			return inactive
		}
	}
}

func (p *blockParser) frameHasChildren(fi int) bool {
	for j := range p.frames {
		if p.frames[j].parent == fi {
			return true
		}
	}
	return false
}

// buildModel converts the raw frames and atoms into the docking model:
// serial references become atom indices, frame origins and axes come from
// the parse-time pose, and interaction pairs enumerate heavy atoms in
// non-adjacent frames (pairs whose separation no single shared torsion
// pins).
func (p *blockParser) buildModel() (*docking.Ligand, error) {
	bySerial := make(map[int]int, len(p.atoms))
	for i, a := range p.atoms {
		bySerial[a.serial] = i
	}

	frames := make([]docking.Frame, len(p.frames))
	for fi, pf := range p.frames {
		f := docking.Frame{Parent: pf.parent, RotorX: -1, RotorY: -1}
		if fi == 0 {
			// Root origin is the first root atom.
			for _, a := range p.atoms {
				if a.frame == 0 {
					f.ParseOrigin = a.coord
					break
				}
			}
		} else {
			x, okX := bySerial[pf.rotorXSerial]
			y, okY := bySerial[pf.rotorYSerial]
			if !okX || !okY {
				return nil, apperrors.New(apperrors.ErrCodeMoleculeTreeInvalid,
					"BRANCH references a non-heavy atom").WithDetail("ligand " + p.name)
			}
			f.RotorX, f.RotorY = x, y
			f.ParseOrigin = p.atoms[y].coord
			f.LocalAxis = p.atoms[y].coord.Sub(p.atoms[x].coord).Normalized()
		}
		frames[fi] = f
	}

	atoms := make([]docking.LigandAtom, len(p.atoms))
	for i, a := range p.atoms {
		atoms[i] = docking.LigandAtom{
			Atom:  docking.Atom{Serial: a.serial, Coord: a.coord, Type: a.xs},
			Frame: a.frame,
		}
	}

	var pairs []docking.InteractionPair
	for i := 0; i < len(atoms); i++ {
		for j := i + 1; j < len(atoms); j++ {
			if framesNonAdjacent(frames, atoms[i].Frame, atoms[j].Frame) {
				pairs = append(pairs, docking.InteractionPair{I: i, J: j})
			}
		}
	}

	return &docking.Ligand{
		Name:   p.name,
		Atoms:  atoms,
		Frames: frames,
		Pairs:  pairs,
	}, nil
}

// framesNonAdjacent reports whether two frames are separated by more than
// one rotatable bond, so the pairwise distance of atoms they own is not
// fixed by the local geometry around a single rotor.
func framesNonAdjacent(frames []docking.Frame, a, b int) bool {
	if a == b {
		return false
	}
	if frames[a].Parent == b || frames[b].Parent == a {
		return false
	}
	return true
}

// ParseReceptor reads a rigid receptor PDBQT: every heavy ATOM/HETATM record
// becomes a receptor atom with a final XScore type, and all tree records are
// ignored since the receptor does not move.
func ParseReceptor(r io.Reader) (*docking.Receptor, error) {
	p := &blockParser{name: "receptor"}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		s := sc.Text()
		if strings.HasPrefix(s, "ATOM") || strings.HasPrefix(s, "HETATM") {
			if err := p.atom(s); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeReceptorParse, "parsing receptor")
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeReceptorParse, "reading receptor")
	}
	if len(p.atoms) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeReceptorParse, "receptor has no heavy atoms")
	}
	p.resolveTypes()

	atoms := make([]docking.Atom, len(p.atoms))
	for i, a := range p.atoms {
		atoms[i] = docking.Atom{Serial: a.serial, Coord: a.coord, Type: a.xs}
	}
	return &docking.Receptor{Atoms: atoms}, nil
}
