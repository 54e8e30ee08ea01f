package source

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sort"

	"fortio.org/safecast"
)

// File holds one registered source file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	lineIdx []uint32 // byte offsets of '\n', for span resolution
	Hash    [32]byte
	Virtual bool
}

// LineCol is a 1-based line/column position.
type LineCol struct {
	Line uint32
	Col  uint32
}

// FileSet manages registered source files and resolves spans to positions.
type FileSet struct {
	files []File // files[0] is the NoFileID sentinel
	index map[string]FileID
}

func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 1),
		index: make(map[string]FileID),
	}
}

// Add registers content under path and returns a fresh FileID.
func (fs *FileSet) Add(path string, content []byte) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file set overflow: %w", err))
	}
	id := FileID(n)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    path,
		Content: content,
		lineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
	})
	fs.index[path] = id
	return id
}

// Load reads path from disk and registers it.
func (fs *FileSet) Load(path string) (FileID, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- caller-provided path
	if err != nil {
		return NoFileID, err
	}
	return fs.Add(path, content), nil
}

// AddVirtual registers an in-memory file (tests, generated input).
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	id := fs.Add(name, content)
	fs.files[id].Virtual = true
	return id
}

// Get returns file metadata or nil for an invalid ID.
func (fs *FileSet) Get(id FileID) *File {
	if !id.IsValid() || int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// ByPath returns the most recently added file registered under path.
func (fs *FileSet) ByPath(path string) (FileID, bool) {
	id, ok := fs.index[path]
	return id, ok
}

// Resolve converts a span into start and end line/column positions.
func (fs *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fs.Get(span.File)
	if f == nil {
		return LineCol{}, LineCol{}
	}
	return toLineCol(f.lineIdx, span.Start), toLineCol(f.lineIdx, span.End)
}

func buildLineIndex(content []byte) []uint32 {
	var idx []uint32
	for i, b := range content {
		if b == '\n' {
			idx = append(idx, uint32(i))
		}
	}
	return idx
}

func toLineCol(lineIdx []uint32, offset uint32) LineCol {
	line := sort.Search(len(lineIdx), func(i int) bool {
		return lineIdx[i] >= offset
	})
	col := offset
	if line > 0 {
		col = offset - lineIdx[line-1] - 1
	}
	return LineCol{Line: uint32(line) + 1, Col: col + 1}
}
