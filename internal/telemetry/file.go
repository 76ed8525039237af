package telemetry

import (
	"fmt"
	"io"
)

// FileSink writes each of the five streams to its own writer as one
// human-readable line per record, one io.Writer per stream.
type FileSink struct {
	full        io.Writer
	packet      io.Writer
	errs        io.Writer
	performance io.Writer
	energy      io.Writer

	errorCount int
}

// NewFileSink builds a FileSink. Any writer may be nil to discard that
// stream.
func NewFileSink(full, packet, errs, performance, energy io.Writer) *FileSink {
	return &FileSink{full: full, packet: packet, errs: errs, performance: performance, energy: energy}
}

func (f *FileSink) Full(r FullRecord) {
	if f.full == nil {
		return
	}
	fmt.Fprintf(f.full, "tick=%d %s %v\n", r.Tick, r.Message, r.Fields)
}

func (f *FileSink) Packet(r PacketRecord) {
	if f.packet == nil {
		return
	}
	fmt.Fprintf(f.packet, "tick=%d %s src=%s dst=%s current=%s next=%s payload=%d\n",
		r.Tick, r.Event, r.Src, r.Dst, r.CurrentNode, r.NextHop, r.Payload)
}

func (f *FileSink) Error(r ErrorRecord) {
	f.errorCount++
	if f.errs == nil {
		return
	}
	fmt.Fprintf(f.errs, "tick=%d node=%s recoverable=%t %s\n", r.Tick, r.Node, r.Recoverable, r.Message)
}

func (f *FileSink) Performance(r PerformanceRecord) {
	if f.performance == nil {
		return
	}
	fmt.Fprintf(f.performance, "src=%s dst=%s attempted=%d delivered=%d errors=%d\n",
		r.Src, r.Dst, r.Attempted, r.Delivered, r.Errors)
}

func (f *FileSink) Energy(r EnergyRecord) {
	if f.energy == nil {
		return
	}
	fmt.Fprintf(f.energy, "tick=%d mean=%f nodes=%v\n", r.Tick, r.MeanBattery, r.PerNode)
}

// ErrorCount returns the total number of error records ever recorded.
func (f *FileSink) ErrorCount() int { return f.errorCount }
