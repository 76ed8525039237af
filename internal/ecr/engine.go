package ecr

import (
	"sort"

	"github.com/kprusa/ecrsim/internal/logger"
	"github.com/kprusa/ecrsim/internal/telemetry"
)

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithEngineLogger attaches a structured logger. Defaults to
// logger.NopLogger.
func WithEngineLogger(l logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithMaxTicks bounds how many ticks Run will execute even if the
// simulation has not otherwise terminated. Zero means unbounded.
func WithMaxTicks(n int) EngineOption {
	return func(e *Engine) { e.maxTicks = n }
}

// Engine drives the tick loop described in §4.5: maintenance, in-flight
// handling, scheduled injection, telemetry, then a termination check —
// in that strict order, every tick.
type Engine struct {
	topology  *Topology
	scheduler *Scheduler
	constants Constants
	sink      telemetry.Sink
	log       logger.Logger

	tick     int
	maxTicks int
	inFlight []Envelope

	perf map[string]*telemetry.PerformanceRecord
}

// NewEngine constructs an Engine over topology and scheduler, emitting
// telemetry to sink. Constants are injected here rather than read from
// global state; the engine does not pass them on to the nodes, which
// receive their own copy through WithConstants when they are built.
func NewEngine(topology *Topology, scheduler *Scheduler, constants Constants, sink telemetry.Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		topology:  topology,
		scheduler: scheduler,
		constants: constants,
		sink:      sink,
		log:       logger.NopLogger{},
		perf:      make(map[string]*telemetry.PerformanceRecord),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tick returns the current simulation tick (the next one to be run).
func (e *Engine) Tick() int { return e.tick }

// Run drives ticks until the termination condition is met or maxTicks
// is exhausted (0 meaning unbounded), then emits the final performance
// summary.
func (e *Engine) Run() {
	for {
		done := e.step()
		if done {
			break
		}
		if e.maxTicks > 0 && e.tick >= e.maxTicks {
			e.log.Warn("engine stopped: max ticks reached", logger.F("maxTicks", e.maxTicks))
			break
		}
	}
	e.emitPerformance()
}

// step runs exactly one tick and reports whether the simulation has
// terminated.
func (e *Engine) step() bool {
	tick := e.tick

	e.maintain(tick)
	e.handleInFlight(tick)
	e.injectScheduled(tick)
	e.recordEnergy(tick)

	e.tick++

	return e.terminated()
}

// maintain is phase 1: progress every node, then every other tick
// refresh or clean up direct-neighbor RMT entries of every alive node.
func (e *Engine) maintain(tick int) {
	for _, n := range e.topology.Nodes() {
		n.Progress(tick, true)
	}

	if tick%2 != 0 {
		return
	}
	for _, name := range e.topology.Names() {
		n := e.topology.Node(name)
		if !n.IsAlive() {
			continue
		}
		for _, neighborName := range n.Links() {
			m := e.topology.Node(neighborName)
			if !m.IsAlive() {
				n.CleanupDeadNeighbor(neighborName)
				continue
			}
			n.UpdateOrCreateRMTEntry(neighborName, neighborName, m.LAT(), 0, tick)
		}
	}
}

// handleInFlight is phase 2: drain the prior in-flight list, dispatch
// each envelope to its addressed node, and collect what it produces.
func (e *Engine) handleInFlight(tick int) {
	prior := e.inFlight
	e.inFlight = nil

	for _, env := range prior {
		n := e.topology.Node(env.NextHop)
		if n == nil {
			continue
		}
		produced := n.HandlePacket(e.sink, env, tick)
		e.inFlight = append(e.inFlight, produced...)
	}
}

// injectScheduled is phase 3: pop every due scheduler entry, ask its
// source to send, extend in-flight, and reschedule if more remain.
func (e *Engine) injectScheduled(tick int) {
	due := e.scheduler.PopDue(tick)
	for _, entry := range due {
		n := e.topology.Node(entry.Src)
		if n == nil {
			continue
		}

		rec := e.perfRecord(entry.Src, entry.Dst)
		rec.Attempted++

		packets, sent, failed := n.AttemptToSendPacket(e.sink, entry.Dst, tick, nil)
		e.inFlight = append(e.inFlight, packets...)

		if failed {
			rec.Errors++
			continue
		}

		if entry.Remaining == -1 {
			e.scheduler.Add(ScheduleEntry{Tick: tick + 1, Src: entry.Src, Dst: entry.Dst, Remaining: -1})
			continue
		}

		remaining := entry.Remaining
		if sent {
			remaining--
		}
		if remaining > 0 {
			e.scheduler.Add(ScheduleEntry{Tick: tick + 1, Src: entry.Src, Dst: entry.Dst, Remaining: remaining})
		} else if !sent {
			// Still waiting on route discovery; keep retrying next tick.
			e.scheduler.Add(ScheduleEntry{Tick: tick + 1, Src: entry.Src, Dst: entry.Dst, Remaining: entry.Remaining})
		}
	}
}

// recordEnergy is phase 4: record mean and per-node battery.
func (e *Engine) recordEnergy(tick int) {
	names := e.topology.Names()
	perNode := make(map[string]float64, len(names))
	var sum float64
	for _, name := range names {
		b := e.topology.Node(name).Battery()
		perNode[name] = b
		sum += b
	}
	mean := 0.0
	if len(names) > 0 {
		mean = sum / float64(len(names))
	}

	e.sink.Energy(telemetry.EnergyRecord{Tick: tick, MeanBattery: mean, PerNode: perNode})
	e.sink.Full(telemetry.FullRecord{
		Tick:    tick,
		Message: "tick complete",
		Fields: map[string]any{
			"inFlight":    len(e.inFlight),
			"scheduled":   e.scheduler.Len(),
			"meanBattery": mean,
		},
	})
}

// terminated is phase 5: halt when nothing is pending or every node is
// dead.
func (e *Engine) terminated() bool {
	if e.scheduler.Len() == 0 && len(e.inFlight) == 0 {
		return true
	}
	for _, n := range e.topology.Nodes() {
		if n.IsAlive() {
			return false
		}
	}
	return true
}

func (e *Engine) perfRecord(src, dst string) *telemetry.PerformanceRecord {
	key := RouteKey(src, dst)
	rec, ok := e.perf[key]
	if !ok {
		rec = &telemetry.PerformanceRecord{Src: src, Dst: dst}
		e.perf[key] = rec
	}
	return rec
}

// emitPerformance fills in delivered counts from the destination nodes'
// bookkeeping and emits one performance record per (src,dst) pair that
// was ever scheduled.
func (e *Engine) emitPerformance() {
	keys := make([]string, 0, len(e.perf))
	for k := range e.perf {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rec := e.perf[k]
		if dstNode := e.topology.Node(rec.Dst); dstNode != nil {
			rec.Delivered = dstNode.NumRPReceived(rec.Src)
		}
		e.sink.Performance(*rec)
	}
}
