// Package rilla is a line-oriented assembler and disassembler for compiled
// units. It stands in for a full compiler front end: one mnemonic per line,
// "fn name/arity" directives, ".label" definitions and "@label" jump
// references, double-quoted string literals.
package rilla

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"rill/internal/source"
	"rill/internal/unit"
)

// Assemble compiles rilla source into a unit. path names the source for
// debug spans.
func Assemble(path string, src []byte) (*unit.Unit, error) {
	a := &assembler{
		b:      unit.NewBuilder(),
		labels: make(map[string]int),
	}
	a.file = a.b.Files().Add(path, src)

	lines := strings.Split(strings.ReplaceAll(string(src), "\r\n", "\n"), "\n")
	offset := 0
	for num, line := range lines {
		if err := a.line(num, offset, line); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, num+1, err)
		}
		offset += len(line) + 1
	}
	if err := a.patch(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a.b.Build()
}

type patchSite struct {
	ip    int
	label string
	line  int
}

type assembler struct {
	b       *unit.Builder
	file    source.FileID
	labels  map[string]int
	patches []patchSite
}

func (a *assembler) line(num, offset int, raw string) error {
	line := raw
	if i := strings.Index(line, ";"); i >= 0 && !insideQuotes(line, i) {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	start, err := safecast.Conv[uint32](offset + leadingSpace(raw))
	if err != nil {
		return fmt.Errorf("source offset overflow: %w", err)
	}
	width, err := safecast.Conv[uint32](len(line))
	if err != nil {
		return fmt.Errorf("source offset overflow: %w", err)
	}
	span := source.Span{File: a.file, Start: start, End: start + width}

	switch {
	case strings.HasPrefix(line, "fn "):
		return a.fnDirective(line)
	case strings.HasPrefix(line, "."):
		label := strings.TrimSpace(line[1:])
		if label == "" {
			return fmt.Errorf("empty label")
		}
		if _, dup := a.labels[label]; dup {
			return fmt.Errorf("duplicate label %q", label)
		}
		a.labels[label] = a.b.Len()
		return nil
	default:
		return a.instruction(num, line, span)
	}
}

func (a *assembler) fnDirective(line string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "fn "))
	name, arityStr, ok := strings.Cut(rest, "/")
	if !ok {
		return fmt.Errorf("expected fn name/arity, got %q", rest)
	}
	arity, err := strconv.Atoi(strings.TrimSpace(arityStr))
	if err != nil {
		return fmt.Errorf("invalid arity %q", arityStr)
	}
	_, err = a.b.AddFn(strings.TrimSpace(name), arity)
	return err
}

func (a *assembler) patch() error {
	for _, p := range a.patches {
		target, ok := a.labels[p.label]
		if !ok {
			return fmt.Errorf("line %d: undefined label %q", p.line+1, p.label)
		}
		inst, okInst := a.b.Inst(p.ip)
		if !okInst {
			return fmt.Errorf("backpatch lost instruction at ip=%d", p.ip)
		}
		inst.N = target
		if err := a.b.SetInst(p.ip, inst); err != nil {
			return err
		}
	}
	return nil
}

func insideQuotes(s string, idx int) bool {
	in := false
	for i := 0; i < idx; i++ {
		if s[i] == '"' && (i == 0 || s[i-1] != '\\') {
			in = !in
		}
	}
	return in
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}
