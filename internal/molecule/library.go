package molecule

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/turtacn/MolDock-Screen/pkg/errors"
)

// LibraryScanner iterates over a concatenated multi-ligand PDBQT stream,
// the format screening libraries ship in: one block per ligand, each ending
// with its TORSDOF record. Blocks are parsed lazily, one per Next call, so
// multi-gigabyte libraries stream at constant memory.
type LibraryScanner struct {
	sc    *bufio.Scanner
	index int
	err   error
}

// NewLibraryScanner wraps r for sequential ligand extraction.
func NewLibraryScanner(r io.Reader) *LibraryScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &LibraryScanner{sc: sc}
}

// Next parses and returns the next ligand in the stream. It returns io.EOF
// once the stream is exhausted. A block that fails to parse is returned as
// an error without invalidating the scanner; the caller decides whether to
// skip or abort.
func (s *LibraryScanner) Next() (*Ligand, error) {
	if s.err != nil {
		return nil, s.err
	}

	var block strings.Builder
	name := ""
	sawAny := false
	for s.sc.Scan() {
		line := s.sc.Text()
		sawAny = true
		if name == "" {
			name = ligandName(line)
		}
		block.WriteString(line)
		block.WriteByte('\n')
		if strings.HasPrefix(line, "TORSDOF") {
			s.index++
			if name == "" {
				name = fmt.Sprintf("ligand-%d", s.index)
			}
			return ParseLigand(strings.NewReader(block.String()), name)
		}
	}
	if err := s.sc.Err(); err != nil {
		s.err = apperrors.Wrap(err, apperrors.ErrCodeMoleculeParseFailed, "reading ligand library")
		return nil, s.err
	}
	if sawAny && strings.TrimSpace(block.String()) != "" {
		// Trailing block without TORSDOF: tolerate tools that omit the
		// terminator on the last molecule.
		s.index++
		if name == "" {
			name = fmt.Sprintf("ligand-%d", s.index)
		}
		s.err = io.EOF
		return ParseLigand(strings.NewReader(block.String()), name)
	}
	s.err = io.EOF
	return nil, io.EOF
}

// Index returns the number of blocks consumed so far.
func (s *LibraryScanner) Index() int { return s.index }

// ligandName extracts a ligand identifier from a REMARK line. ZINC-prepared
// files carry "REMARK  Name = ZINC00123456"; OpenBabel writes the name after
// "REMARK  " directly.
func ligandName(line string) string {
	if !strings.HasPrefix(line, "REMARK") {
		return ""
	}
	if i := strings.Index(line, "Name ="); i >= 0 {
		return strings.TrimSpace(line[i+len("Name ="):])
	}
	return ""
}
