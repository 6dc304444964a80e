package unit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"rill/internal/hash"
	"rill/internal/source"
)

// Current schema version - increment when diskUnit format changes.
const diskSchemaVersion uint16 = 1

// Ext is the file extension for serialized units.
const Ext = ".rlu"

type diskFn struct {
	Hash   uint64
	Name   string
	Offset int
	Args   int
}

type diskDebug struct {
	File  uint32
	Start uint32
	End   uint32
	Label string
}

type diskFile struct {
	Path    string
	Content []byte
}

// diskUnit is the serialized form of a Unit.
type diskUnit struct {
	Schema uint16

	Insts         []Inst
	Functions     []diskFn
	StaticStrings []string
	Debug         []diskDebug
	Files         []diskFile
}

// Encode writes the unit to w in msgpack form.
func (u *Unit) Encode(w io.Writer) error {
	payload := diskUnit{
		Schema:        diskSchemaVersion,
		Insts:         u.insts,
		StaticStrings: u.staticStrings,
	}
	for h, fn := range u.functions {
		payload.Functions = append(payload.Functions, diskFn{
			Hash:   uint64(h),
			Name:   fn.Name,
			Offset: fn.Offset,
			Args:   fn.Args,
		})
	}
	// Map order is random; sort so the same unit always encodes to the
	// same bytes.
	sort.Slice(payload.Functions, func(i, j int) bool {
		return payload.Functions[i].Hash < payload.Functions[j].Hash
	})
	for _, d := range u.debug {
		payload.Debug = append(payload.Debug, diskDebug{
			File:  uint32(d.Span.File),
			Start: d.Span.Start,
			End:   d.Span.End,
			Label: d.Label,
		})
	}
	if u.files != nil {
		for id := source.FileID(0); ; id++ {
			f := u.files.Get(id)
			if f == nil {
				break
			}
			payload.Files = append(payload.Files, diskFile{Path: f.Path, Content: f.Content})
		}
	}
	return msgpack.NewEncoder(w).Encode(&payload)
}

// Decode reads a unit previously written by Encode, rejecting payloads
// written under a different schema version.
func Decode(r io.Reader) (*Unit, error) {
	var payload diskUnit
	if err := msgpack.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}
	if payload.Schema != diskSchemaVersion {
		return nil, fmt.Errorf("unsupported unit schema %d (want %d)", payload.Schema, diskSchemaVersion)
	}

	u := &Unit{
		insts:         payload.Insts,
		functions:     make(map[hash.Hash]FnInfo, len(payload.Functions)),
		staticStrings: payload.StaticStrings,
		files:         source.NewFileSet(),
	}
	for _, fn := range payload.Functions {
		u.functions[hash.Hash(fn.Hash)] = FnInfo{Name: fn.Name, Offset: fn.Offset, Args: fn.Args}
	}
	for _, d := range payload.Debug {
		u.debug = append(u.debug, DebugEntry{
			Span:  source.Span{File: source.FileID(d.File), Start: d.Start, End: d.End},
			Label: d.Label,
		})
	}
	for _, f := range payload.Files {
		u.files.Add(f.Path, f.Content)
	}
	return u, nil
}

// Save writes the unit to path atomically.
func (u *Unit) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*"+Ext)
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := u.Encode(f); err != nil {
		f.Close()      //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return os.Rename(tmp, path)
}

// LoadFile reads a serialized unit from disk.
func LoadFile(path string) (*Unit, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the caller
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return Decode(f)
}
