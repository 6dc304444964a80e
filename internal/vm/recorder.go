package vm

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const recordLogVersion = 1

// RecordHeader opens every execution log.
type RecordHeader struct {
	Version int    `msgpack:"version"`
	Session string `msgpack:"session"`
	Fn      string `msgpack:"fn"`
	Insts   int    `msgpack:"insts"`
}

// RecordEvent is one logged execution event.
type RecordEvent struct {
	Kind  string `msgpack:"kind"` // "step", "result" or "panic"
	IP    int    `msgpack:"ip,omitempty"`
	Depth int    `msgpack:"depth,omitempty"`
	Inst  string `msgpack:"inst,omitempty"`

	Value string `msgpack:"value,omitempty"`

	Code    int    `msgpack:"code,omitempty"`
	Message string `msgpack:"message,omitempty"`
}

// Recorder writes a deterministic execution log: one event per executed
// instruction plus a terminal result or panic event. Logs from two runs of
// the same unit and input are byte-identical apart from the session id.
type Recorder struct {
	enc  *msgpack.Encoder
	err  error
	done bool
}

// NewRecorder writes a log header for the given execution to w.
func NewRecorder(w io.Writer, exec *Execution) *Recorder {
	r := &Recorder{enc: msgpack.NewEncoder(w)}
	r.write(RecordHeader{
		Version: recordLogVersion,
		Session: uuid.NewString(),
		Fn:      exec.Vm().Entry().Name,
		Insts:   exec.Vm().Unit().Len(),
	})
	return r
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// Done reports whether a terminal event has been written.
func (r *Recorder) Done() bool {
	if r == nil {
		return true
	}
	return r.done
}

// RecordStep logs the instruction about to execute.
func (r *Recorder) RecordStep(sp StopPoint) {
	if r == nil || r.done {
		return
	}
	r.write(RecordEvent{Kind: "step", IP: sp.IP, Depth: sp.Depth, Inst: sp.Inst.String()})
}

// RecordResult logs successful completion.
func (r *Recorder) RecordResult(v Value) {
	if r == nil || r.done {
		return
	}
	r.write(RecordEvent{Kind: "result", Value: v.DebugString()})
	r.done = true
}

// RecordPanic logs a terminal error.
func (r *Recorder) RecordPanic(vmErr *VmError) {
	if r == nil || r.done {
		return
	}
	ev := RecordEvent{Kind: "panic", Code: int(vmErr.Kind), Message: vmErr.Message}
	if ip, ok := vmErr.IP(); ok {
		ev.IP = ip
	}
	r.write(ev)
	r.done = true
}

func (r *Recorder) write(v any) {
	if r.err != nil {
		return
	}
	r.err = r.enc.Encode(v)
}

// Replayer reads a previously recorded log and validates a new execution
// against it step by step.
type Replayer struct {
	header RecordHeader
	events []RecordEvent
	next   int

	parseErr error
}

// NewReplayer parses a log from rd.
func NewReplayer(rd io.Reader) *Replayer {
	r := &Replayer{}
	dec := msgpack.NewDecoder(rd)
	if err := dec.Decode(&r.header); err != nil {
		r.parseErr = fmt.Errorf("decode log header: %w", err)
		return r
	}
	for {
		var ev RecordEvent
		if err := dec.Decode(&ev); err != nil {
			if err == io.EOF {
				break
			}
			r.parseErr = fmt.Errorf("decode log event: %w", err)
			return r
		}
		r.events = append(r.events, ev)
	}
	return r
}

// Validate checks the log is well-formed and matches the execution's
// entry point.
func (r *Replayer) Validate(exec *Execution) error {
	if r == nil {
		return fmt.Errorf("nil replayer")
	}
	if r.parseErr != nil {
		return r.parseErr
	}
	if r.header.Version != recordLogVersion {
		return fmt.Errorf("unsupported log version %d", r.header.Version)
	}
	if fn := exec.Vm().Entry().Name; r.header.Fn != fn {
		return fmt.Errorf("log recorded %q, replaying %q", r.header.Fn, fn)
	}
	return nil
}

// CheckStep validates the instruction about to execute against the log.
func (r *Replayer) CheckStep(sp StopPoint) error {
	if r.next >= len(r.events) {
		return fmt.Errorf("log exhausted at ip=%d", sp.IP)
	}
	ev := r.events[r.next]
	r.next++
	if ev.Kind != "step" {
		return fmt.Errorf("log diverged: expected terminal %q, got step at ip=%d", ev.Kind, sp.IP)
	}
	if ev.IP != sp.IP || ev.Depth != sp.Depth {
		return fmt.Errorf("log diverged at event %d: recorded ip=%d depth=%d, got ip=%d depth=%d",
			r.next-1, ev.IP, ev.Depth, sp.IP, sp.Depth)
	}
	return nil
}

// CheckResult validates the terminal value against the log.
func (r *Replayer) CheckResult(v Value) error {
	if r.next >= len(r.events) {
		return fmt.Errorf("log ended before result")
	}
	ev := r.events[r.next]
	r.next++
	if ev.Kind != "result" {
		return fmt.Errorf("log recorded %q terminal, execution produced a result", ev.Kind)
	}
	if got := v.DebugString(); ev.Value != got {
		return fmt.Errorf("log recorded result %s, got %s", ev.Value, got)
	}
	return nil
}

// Remaining returns the number of unconsumed events.
func (r *Replayer) Remaining() int {
	return len(r.events) - r.next
}
