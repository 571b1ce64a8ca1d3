package rsp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Trace records one host operation on a coprocessor
type Trace struct {
	Operation string
	Operands  map[string]string
	Result    string
	Error     error
}

func (t *Trace) resultString() string {
	if t.Error != nil {
		return fmt.Sprintf("error: %v", t.Error.Error())
	} else if len(t.Result) > 0 {
		return fmt.Sprintf("result: %v", t.Result)
	} else {
		return ""
	}
}

func (t *Trace) joinOperands() string {
	names := make([]string, 0, len(t.Operands))
	for name := range t.Operands {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]string, 0, len(names))
	for _, name := range names {
		fields = append(fields, fmt.Sprintf("%v: %v", name, t.Operands[name]))
	}

	return strings.Join(fields, ", ")
}

func (t *Trace) String() string {
	return strings.TrimSpace(fmt.Sprintf("%v(%v) %s", t.Operation, t.joinOperands(), t.resultString()))
}

type Tracer interface {
	SaveTrace(t *Trace)
}

type logTracer struct {
	logger *slog.Logger
}

// LogTracer writes traces to logger at debug level
func LogTracer(logger *slog.Logger) Tracer {
	return &logTracer{logger: logger.With("component", "coprocessor-trace")}
}

func (t *logTracer) SaveTrace(trace *Trace) {
	if !t.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	t.logger.Debug(trace.String())
}

type tracedCoprocessor struct {
	Coprocessor
	tracer Tracer

	mu         sync.Mutex
	lastStatus uint32
	seenStatus bool
}

// Traced wraps a coprocessor so every host operation is saved to tracer.
// Status polls are only traced when the value changes.
func Traced(impl Coprocessor, tracer Tracer) Coprocessor {
	return &tracedCoprocessor{
		Coprocessor: impl,
		tracer:      tracer,
	}
}

func (t *tracedCoprocessor) LoadCode(code []byte, offset uint32) error {
	err := t.Coprocessor.LoadCode(code, offset)

	t.tracer.SaveTrace(&Trace{
		Operation: "LoadCode",
		Operands: map[string]string{
			"bytes":  fmt.Sprint(len(code)),
			"offset": fmt.Sprintf("0x%x", offset),
		},
		Error: err,
	})

	return err
}

func (t *tracedCoprocessor) WriteRDRAM(address uint32, data []byte) error {
	err := t.Coprocessor.WriteRDRAM(address, data)

	t.tracer.SaveTrace(&Trace{
		Operation: "WriteRDRAM",
		Operands: map[string]string{
			"address": fmt.Sprintf("0x%08x", address),
			"bytes":   fmt.Sprint(len(data)),
		},
		Error: err,
	})

	return err
}

func (t *tracedCoprocessor) WriteStatus(bits uint32) error {
	err := t.Coprocessor.WriteStatus(bits)

	t.tracer.SaveTrace(&Trace{
		Operation: "WriteStatus",
		Operands: map[string]string{
			"bits": fmt.Sprintf("0x%08x", bits),
		},
		Error: err,
	})

	return err
}

func (t *tracedCoprocessor) Status() uint32 {
	status := t.Coprocessor.Status()

	t.mu.Lock()
	changed := !t.seenStatus || status != t.lastStatus
	t.lastStatus, t.seenStatus = status, true
	t.mu.Unlock()

	if changed {
		t.tracer.SaveTrace(&Trace{
			Operation: "Status",
			Result:    fmt.Sprintf("0x%04x %s", status, FormatStatus(status)),
		})
	}

	return status
}

func (t *tracedCoprocessor) RunAsync() error {
	err := t.Coprocessor.RunAsync()
	t.tracer.SaveTrace(&Trace{Operation: "RunAsync", Error: err})
	return err
}

func (t *tracedCoprocessor) Halt() error {
	err := t.Coprocessor.Halt()
	t.tracer.SaveTrace(&Trace{Operation: "Halt", Error: err})
	return err
}

func (t *tracedCoprocessor) ReadBlock(space Space, offset uint32, dst []byte) error {
	err := t.Coprocessor.ReadBlock(space, offset, dst)

	t.tracer.SaveTrace(&Trace{
		Operation: "ReadBlock",
		Operands: map[string]string{
			"space":  space.String(),
			"offset": fmt.Sprint(offset),
			"bytes":  fmt.Sprint(len(dst)),
		},
		Error: err,
	})

	return err
}

func (t *tracedCoprocessor) Crash(reason string) error {
	err := t.Coprocessor.Crash(reason)

	t.tracer.SaveTrace(&Trace{
		Operation: "Crash",
		Operands: map[string]string{
			"reason": reason,
		},
		Error: err,
	})

	return err
}

func (t *tracedCoprocessor) Close() error {
	err := t.Coprocessor.Close()
	t.tracer.SaveTrace(&Trace{Operation: "Close", Error: err})
	return err
}
