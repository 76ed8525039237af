package ecr

import (
	"testing"

	"github.com/kprusa/ecrsim/internal/telemetry"
)

func threeNodeLine() *Topology {
	a := NewNode("a", 0, 0, 1.0, WithLinks("b"))
	b := NewNode("b", 1, 0, 1.0, WithLinks("a", "c"))
	c := NewNode("c", 2, 0, 1.0, WithLinks("b"))

	topo, err := NewTopology(map[string]*Node{"a": a, "b": b, "c": c})
	if err != nil {
		panic(err)
	}
	return topo
}

func TestEngine_ThreeNodeLineDeliversOnePacket(t *testing.T) {
	topo := threeNodeLine()
	scheduler := NewScheduler(ScheduleEntry{Tick: 0, Src: "a", Dst: "c", Remaining: 1})
	sink := &recordingSink{}

	engine := NewEngine(topo, scheduler, DefaultConstants(), sink, WithMaxTicks(500))
	engine.Run()

	delivered := 0
	for _, p := range sink.packets {
		if p.Event == "delivered" {
			delivered++
		}
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1 (packets observed: %#v)", delivered, sink.packets)
	}
}

func TestEngine_TerminatesWhenNothingPending(t *testing.T) {
	topo := threeNodeLine()
	scheduler := NewScheduler()
	engine := NewEngine(topo, scheduler, DefaultConstants(), &recordingSink{}, WithMaxTicks(10))

	engine.Run()
	if engine.Tick() != 1 {
		t.Fatalf("Tick() = %d, want 1 (should terminate on the first empty tick)", engine.Tick())
	}
}

func TestEngine_IsolatedSourceNeverDelivers(t *testing.T) {
	a := NewNode("a", 0, 0, 1.0)
	z := NewNode("z", 1, 0, 1.0)
	topo, err := NewTopology(map[string]*Node{"a": a, "z": z})
	if err != nil {
		t.Fatal(err)
	}

	scheduler := NewScheduler(ScheduleEntry{Tick: 0, Src: "a", Dst: "z", Remaining: 1})
	sink := &recordingSink{}
	engine := NewEngine(topo, scheduler, DefaultConstants(), sink, WithMaxTicks(500))
	engine.Run()

	for _, p := range sink.packets {
		if p.Event == "delivered" {
			t.Fatalf("isolated source should never deliver, got %#v", p)
		}
	}
}

var _ telemetry.Sink = (*recordingSink)(nil)
