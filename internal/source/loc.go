package source

// Loc is a position inside a registered file. A Loc with a non-nil Expansion
// sits inside macro-expanded text: Expansion points at the position the macro
// was expanded at, Spelling at the position the token was originally written.
// A Loc with a nil Expansion is a plain file offset.
type Loc struct {
	File   FileID
	Offset uint32

	Expansion *Loc
	Spelling  *Loc
}

// Valid reports whether l refers to anything at all.
func (l Loc) Valid() bool {
	return l.File != 0 || l.Expansion != nil
}

// InExpansion reports whether l sits inside macro-expanded text.
func (l Loc) InExpansion() bool {
	return l.Expansion != nil
}

// ExpansionLoc walks l's expansion chain to the file-level position the
// outermost expansion happened at. Implemented as a loop so pathological
// macro nesting cannot exhaust the stack.
func ExpansionLoc(l Loc) Loc {
	for l.Expansion != nil {
		l = *l.Expansion
	}
	return l
}

// FileLoc resolves l to a location inside a registered file, searching the
// expansion history first and the spelling history second. The boolean is
// false when no link in the history lands in a real file.
func FileLoc(l Loc) (Loc, bool) {
	work := []Loc{l}
	for len(work) > 0 {
		cur := work[0]
		work = work[1:]
		if cur.Expansion == nil {
			if cur.File != 0 {
				return cur, true
			}
			continue
		}
		work = append(work, *cur.Expansion)
		if cur.Spelling != nil {
			work = append(work, *cur.Spelling)
		}
	}
	return Loc{}, false
}

// Range is a physical span. Start and End may coincide: zero-length ranges
// are how synthesized references are anchored.
type Range struct {
	Start Loc
	End   Loc
}

// NewRange builds a range over a single file.
func NewRange(file FileID, begin, end uint32) Range {
	return Range{
		Start: Loc{File: file, Offset: begin},
		End:   Loc{File: file, Offset: end},
	}
}
