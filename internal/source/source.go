// Package source models the physical side of a compilation: the set of files
// the front end visited, and locations inside them. Locations carry optional
// expansion and spelling links so that positions inside macro-expanded text
// can be walked back to a real file offset.
package source

import (
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/DeusData/semgraph/internal/vname"
)

// FileID is a handle into a Table. The zero FileID is invalid.
type FileID int32

// File is one registered source file.
type File struct {
	ID   FileID
	Path string // as presented by the front end
	UID  uint64 // stable identity derived from path and content
	Text []byte
	// VName is the corpus-supplied identity for this file, when the
	// compilation's vname mapping covered it. Zero when unmapped.
	VName vname.VName
}

// Table registers the files of one compilation and hands out FileIDs.
// The same physical file included several times has one entry; the observer
// layers preprocessing contexts on top of it.
type Table struct {
	workingDirectory string
	files            []*File
	byPath           map[string]FileID
}

// NewTable returns an empty table. Paths under workingDirectory are
// relativized when deriving fallback VNames.
func NewTable(workingDirectory string) *Table {
	return &Table{
		workingDirectory: workingDirectory,
		byPath:           make(map[string]FileID),
	}
}

// WorkingDirectory returns the directory paths are relativized against.
func (t *Table) WorkingDirectory() string {
	return t.workingDirectory
}

// AddFile registers a file and returns its handle. Re-adding the same path
// returns the existing handle.
func (t *Table) AddFile(path string, text []byte) FileID {
	return t.AddFileVName(path, text, vname.VName{})
}

// AddFileVName registers a file with a corpus-supplied VName.
func (t *Table) AddFileVName(path string, text []byte, v vname.VName) FileID {
	if id, ok := t.byPath[path]; ok {
		return id
	}
	id := FileID(len(t.files) + 1)
	f := &File{
		ID:    id,
		Path:  path,
		UID:   fileUID(path, text),
		Text:  text,
		VName: v,
	}
	t.files = append(t.files, f)
	t.byPath[path] = id
	return id
}

// Lookup resolves a handle. Returns nil for the invalid FileID.
func (t *Table) Lookup(id FileID) *File {
	if id <= 0 || int(id) > len(t.files) {
		return nil
	}
	return t.files[id-1]
}

// ByPath resolves a previously registered path to its handle.
func (t *Table) ByPath(path string) (FileID, bool) {
	id, ok := t.byPath[path]
	return id, ok
}

// RelPath returns f's path relative to the working directory when the path
// lies under it, and the path unchanged otherwise.
func (t *Table) RelPath(f *File) string {
	wd := t.workingDirectory
	if wd == "" {
		return f.Path
	}
	if !strings.HasSuffix(wd, string(filepath.Separator)) {
		wd += string(filepath.Separator)
	}
	if rel, ok := strings.CutPrefix(f.Path, wd); ok {
		return rel
	}
	return f.Path
}

func fileUID(path string, text []byte) uint64 {
	h := xxh3.New()
	h.WriteString(path)
	h.Write([]byte{0})
	h.Write(text)
	return h.Sum64()
}
