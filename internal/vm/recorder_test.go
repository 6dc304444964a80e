package vm

import (
	"bytes"
	"testing"
)

func recordRun(t *testing.T, buf *bytes.Buffer) Value {
	t.Helper()
	exec, vmErr := Execute(threeInstUnit(t), nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	rec := NewRecorder(buf, exec)
	for {
		if sp, ok := exec.Vm().StopPoint(); ok {
			rec.RecordStep(sp)
		}
		v, done, err := exec.Step()
		if err != nil {
			rec.RecordPanic(err)
			t.Fatalf("step: %v", err)
		}
		if done {
			rec.RecordResult(v)
			if rec.Err() != nil {
				t.Fatalf("recorder: %v", rec.Err())
			}
			return v
		}
	}
}

func TestRecordReplayRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	recordRun(t, &buf)

	exec, vmErr := Execute(threeInstUnit(t), nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	rp := NewReplayer(&buf)
	if err := rp.Validate(exec); err != nil {
		t.Fatalf("validate: %v", err)
	}
	for {
		if sp, ok := exec.Vm().StopPoint(); ok {
			if err := rp.CheckStep(sp); err != nil {
				t.Fatalf("check step: %v", err)
			}
		}
		v, done, err := exec.Step()
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		if done {
			if err := rp.CheckResult(v); err != nil {
				t.Fatalf("check result: %v", err)
			}
			break
		}
	}
	if rp.Remaining() != 0 {
		t.Fatalf("remaining events = %d", rp.Remaining())
	}
}

func TestReplayDivergenceDetected(t *testing.T) {
	var buf bytes.Buffer
	recordRun(t, &buf)

	// Replay a different program against the same log.
	rp := NewReplayer(&buf)
	exec, vmErr := Execute(threeInstUnit(t), nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	if err := rp.Validate(exec); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := rp.CheckStep(StopPoint{IP: 7, Depth: 2}); err == nil {
		t.Fatal("expected divergence error")
	}
}

func TestReplayRejectsWrongEntry(t *testing.T) {
	var buf bytes.Buffer
	recordRun(t, &buf)

	u := threeInstUnit(t)
	rp := NewReplayer(&buf)
	exec := &Execution{vm: New(u, nil)}
	exec.vm.entry.Name = "other"
	if err := rp.Validate(exec); err == nil {
		t.Fatal("expected entry mismatch")
	}
}

func TestReplayerBadInput(t *testing.T) {
	rp := NewReplayer(bytes.NewReader([]byte{0xc1, 0x00}))
	exec, vmErr := Execute(threeInstUnit(t), nil, "main", nil)
	if vmErr != nil {
		t.Fatalf("execute: %v", vmErr)
	}
	if err := rp.Validate(exec); err == nil {
		t.Fatal("expected parse error")
	}
}
