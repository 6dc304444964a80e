package source

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"fortio.org/safecast"
)

// File holds the content and line index of a single registered file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	lineIdx []uint32
}

// FileSet is the collection of files a unit's debug info refers to.
type FileSet struct {
	files []File
	index map[string]FileID
}

// NewFileSet creates an empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{index: make(map[string]FileID)}
}

// Add registers normalized content under the given path and returns its ID.
func (fs *FileSet) Add(path string, content []byte) FileID {
	normalized := filepath.ToSlash(filepath.Clean(path))
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file count overflow: %w", err))
	}
	id := FileID(n)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    normalized,
		Content: content,
		lineIdx: buildLineIndex(content),
	})
	fs.index[normalized] = id
	return id
}

// Load reads a file from disk, normalizes CRLF line endings, and registers it.
func (fs *FileSet) Load(path string) (FileID, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path comes from the caller
	if err != nil {
		return 0, err
	}
	return fs.Add(path, normalizeCRLF(content)), nil
}

// Get returns the file for the given ID, or nil if it is out of range.
func (fs *FileSet) Get(id FileID) *File {
	if fs == nil || int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// Lookup returns the ID registered for a path, if any.
func (fs *FileSet) Lookup(path string) (FileID, bool) {
	id, ok := fs.index[filepath.ToSlash(filepath.Clean(path))]
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

// Format renders a span as "path:line:col", or "<no-span>" when it cannot
// be resolved.
func (fs *FileSet) Format(span Span) string {
	if fs == nil || span.Empty() && span.Start == 0 {
		return "<no-span>"
	}
	f := fs.Get(span.File)
	if f == nil {
		return "<no-span>"
	}
	start, _ := fs.Resolve(span)
	return fmt.Sprintf("%s:%d:%d", f.Path, start.Line, start.Col)
}

func normalizeCRLF(content []byte) []byte {
	if !slices.Contains(content, '\r') {
		return content
	}
	out := make([]byte, 0, len(content))
	for i := 0; i < len(content); i++ {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			continue
		}
		out = append(out, content[i])
	}
	return out
}

func buildLineIndex(content []byte) []uint32 {
	var out []uint32
	for i, b := range content {
		if b == '\n' {
			out = append(out, uint32(i)) // #nosec G115 -- i bounded by file size
		}
	}
	return out
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	if len(lineIdx) == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	// Largest lineIdx[i] <= off.
	lo, hi := 0, len(lineIdx)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		if lineIdx[mid] <= off {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	line := hi
	if line < 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	startOff := lineIdx[line] + 1
	return LineCol{Line: uint32(line + 2), Col: off - startOff + 1} // #nosec G115
}
