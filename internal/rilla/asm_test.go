package rilla

import (
	"bytes"
	"strings"
	"testing"

	"rill/internal/hash"
	"rill/internal/unit"
	"rill/internal/vm"
)

const sumSource = `; sum the numbers 1..n
fn main/0
    int 5
    call sum/1
    ret

fn sum/1
    int 0            ; accumulator at +1
.loop
    copy 0
    int 0
    gt top, top
    jump-if-not @done
    add +1, +0
    replace 1
    int 1
    sub +0, top
    replace 0
    jump @loop
.done
    move 1
    clean 2
    ret
`

func assemble(t *testing.T, src string) *unit.Unit {
	t.Helper()
	u, err := Assemble("test.rilla", []byte(src))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return u
}

func TestAssembleAndRun(t *testing.T) {
	u := assemble(t, sumSource)
	exec, vmErr := vm.Execute(u, nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	v, err := exec.Complete()
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n, e := v.Int(); e != nil || n != 15 {
		t.Fatalf("result = %v, want 15", v)
	}
}

func TestAssembleLiterals(t *testing.T) {
	u := assemble(t, `
fn main/0
    bool true
    int -7
    float 2.5
    byte 0x0a
    char 'λ'
    string "hi\n"
    ret-unit
`)
	wantOps := []unit.Op{
		unit.OpBool, unit.OpInt, unit.OpFloat, unit.OpByte,
		unit.OpChar, unit.OpString, unit.OpReturnUnit,
	}
	if u.Len() != len(wantOps) {
		t.Fatalf("len = %d, want %d", u.Len(), len(wantOps))
	}
	for ip, want := range wantOps {
		inst, _ := u.Inst(ip)
		if inst.Op != want {
			t.Fatalf("ip=%d op = %s, want %s", ip, inst.Op, want)
		}
	}
	inst, _ := u.Inst(1)
	if inst.Int != -7 {
		t.Fatalf("int literal = %d", inst.Int)
	}
	inst, _ = u.Inst(4)
	if rune(inst.Int) != 'λ' {
		t.Fatalf("char literal = %q", rune(inst.Int))
	}
	s, ok := u.StaticString(0)
	if !ok || s != "hi\n" {
		t.Fatalf("static string = %q, ok=%t", s, ok)
	}
}

func TestAssembleCallHash(t *testing.T) {
	u := assemble(t, `
fn main/0
    call util::sum/2
    ret
`)
	inst, _ := u.Inst(0)
	if inst.Hash != hash.Name("util::sum") || inst.N != 2 {
		t.Fatalf("call inst = %+v", inst)
	}
}

func TestAssembleErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unknown mnemonic", "fn main/0\n    frobnicate\n", "unknown mnemonic"},
		{"undefined label", "fn main/0\n    jump @nowhere\n", "undefined label"},
		{"duplicate label", "fn main/0\n.a\n.a\n    ret-unit\n", "duplicate label"},
		{"bad arity", "fn main/x\n", "invalid arity"},
		{"bad address", "fn main/0\n    add left, top\n", "invalid address"},
		{"extra operand", "fn main/0\n    ret 3\n", "takes no operand"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Assemble("bad.rilla", []byte(c.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("error %q does not mention %q", err, c.want)
			}
		})
	}
}

func TestSpansResolve(t *testing.T) {
	u := assemble(t, "fn main/0\n    int 1\n    ret\n")
	loc := u.FormatSpanAt(0)
	if !strings.HasPrefix(loc, "test.rilla:2:") {
		t.Fatalf("span for ip=0 = %q", loc)
	}
}

func TestDisassembleListing(t *testing.T) {
	u := assemble(t, sumSource)
	var buf bytes.Buffer
	if err := Disassemble(u, &buf); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"fn main/0:", "fn sum/1:", "jump-if-not", "replace 1", "clean 2", "ret"} {
		if !strings.Contains(out, want) {
			t.Fatalf("listing missing %q:\n%s", want, out)
		}
	}
}
