package ecr

import (
	"testing"

	"github.com/kprusa/ecrsim/internal/telemetry"
)

// recordingSink is a minimal telemetry.Sink used only to observe what the
// core emits during a test, without pulling in a concrete backend.
type recordingSink struct {
	packets []telemetry.PacketRecord
	errors  []telemetry.ErrorRecord
}

func (r *recordingSink) Full(telemetry.FullRecord)             {}
func (r *recordingSink) Packet(p telemetry.PacketRecord)        { r.packets = append(r.packets, p) }
func (r *recordingSink) Error(e telemetry.ErrorRecord)          { r.errors = append(r.errors, e) }
func (r *recordingSink) Performance(telemetry.PerformanceRecord) {}
func (r *recordingSink) Energy(telemetry.EnergyRecord)          {}

func TestNode_ProgressDrainsBatteryAndClampsAtZero(t *testing.T) {
	n := NewNode("a", 0, 0, 0.0005, WithConstants(Constants{BatteryDrainConstant: 0.001}))
	n.Progress(0, false)
	if n.Battery() != 0 {
		t.Fatalf("Battery() = %v, want 0", n.Battery())
	}
	if n.IsAlive() {
		t.Fatal("node should be dead once battery reaches zero")
	}

	// A dead node stays clamped and Progress is a no-op beyond that.
	n.Progress(1, true)
	if n.Battery() != 0 {
		t.Fatalf("dead node's battery changed: %v", n.Battery())
	}
}

func TestNode_UpdateOrCreateRMTEntry_DiscountsTowardTick(t *testing.T) {
	n := NewNode("a", 0, 0, 1.0, WithConstants(Constants{Gamma: 0.5}))
	n.lat = 100 // pretend this node's own forecast horizon is tick 100

	latR, df := n.UpdateOrCreateRMTEntry("z", "b", 20, 0, 10)
	// discounted = 10 + 0.5*(20-10) = 15; latR = min(100, 15) = 15, df = 0+1 = 1
	if latR != 15 {
		t.Fatalf("latR = %v, want 15", latR)
	}
	if df != 1 {
		t.Fatalf("df = %v, want 1", df)
	}

	entries := n.RMT("z")
	if len(entries) != 1 || entries[0].NextHop != "b" {
		t.Fatalf("RMT(z) = %#v", entries)
	}

	// Upsert: a second call for the same next hop replaces, not appends.
	n.UpdateOrCreateRMTEntry("z", "b", 30, 1, 10)
	if got := len(n.RMT("z")); got != 1 {
		t.Fatalf("expected upsert to keep one entry, got %d", got)
	}
}

func TestNode_GetBestRoute_PicksHighestLatR(t *testing.T) {
	n := NewNode("a", 0, 0, 1.0)
	n.rmt["z"] = []RMTEntry{
		{NextHop: "b", LatR: 50},
		{NextHop: "c", LatR: 90},
	}
	best, ok := n.GetBestRoute("z")
	if !ok || best.NextHop != "c" {
		t.Fatalf("GetBestRoute(z) = %#v, ok=%v, want next hop c", best, ok)
	}
}

func TestNode_GetBestRoute_NoRouteKnown(t *testing.T) {
	n := NewNode("a", 0, 0, 1.0)
	if _, ok := n.GetBestRoute("nowhere"); ok {
		t.Fatal("expected no route for unknown destination")
	}
}

func TestNode_CleanupDeadNeighbor_DropsMatchingEntries(t *testing.T) {
	n := NewNode("a", 0, 0, 1.0)
	n.rmt["z"] = []RMTEntry{{NextHop: "b", LatR: 10}, {NextHop: "c", LatR: 20}}
	n.rmt["y"] = []RMTEntry{{NextHop: "b", LatR: 5}}

	n.CleanupDeadNeighbor("b")

	if got := n.RMT("z"); len(got) != 1 || got[0].NextHop != "c" {
		t.Fatalf("RMT(z) after cleanup = %#v", got)
	}
	if got := n.RMT("y"); len(got) != 0 {
		t.Fatalf("RMT(y) after cleanup = %#v, want empty", got)
	}
}

func TestNode_AttemptToSendPacket_NoRouteGeneratesDiscovery(t *testing.T) {
	n := NewNode("a", 0, 0, 1.0, WithLinks("b"))
	n.rmt["b"] = []RMTEntry{{NextHop: "b", LatR: 100}}

	sink := &recordingSink{}
	packets, sent, failed := n.AttemptToSendPacket(sink, "z", 0, nil)
	if sent || failed {
		t.Fatalf("sent=%v failed=%v, want false/false while discovering", sent, failed)
	}
	if len(packets) == 0 {
		t.Fatal("expected at least one RD packet")
	}
	for _, p := range packets {
		if _, ok := p.Msg.(RouteDiscover); !ok {
			t.Fatalf("expected RouteDiscover, got %T", p.Msg)
		}
	}
}

func TestNode_AttemptToSendPacket_DeadNodeFails(t *testing.T) {
	n := NewNode("a", 0, 0, 0.0)
	sink := &recordingSink{}
	_, sent, failed := n.AttemptToSendPacket(sink, "z", 0, nil)
	if sent || !failed {
		t.Fatalf("sent=%v failed=%v, want false/true for a dead source", sent, failed)
	}
	if len(sink.errors) != 1 {
		t.Fatalf("expected one error record, got %d", len(sink.errors))
	}
}

func TestNode_AttemptToSendPacket_RouteKnownSendsRP(t *testing.T) {
	n := NewNode("a", 0, 0, 1.0)
	n.rmt["z"] = []RMTEntry{{NextHop: "b", LatR: 50}}

	sink := &recordingSink{}
	packets, sent, failed := n.AttemptToSendPacket(sink, "z", 0, nil)
	if !sent || failed {
		t.Fatalf("sent=%v failed=%v, want true/false", sent, failed)
	}
	if len(packets) != 1 {
		t.Fatalf("expected exactly one RP, got %d", len(packets))
	}
	rp, ok := packets[0].Msg.(RoutePacket)
	if !ok || rp.Payload != 1 {
		t.Fatalf("packets[0] = %#v", packets[0])
	}
	if len(sink.packets) != 1 || sink.packets[0].Event != "sent" {
		t.Fatalf("sink.packets = %#v", sink.packets)
	}
}

func TestNode_HandlePacket_RouteDiscoverAtDestinationRespondsWithRR(t *testing.T) {
	z := NewNode("z", 0, 0, 1.0, WithLinks("m"))
	z.lat = 42

	env := Envelope{CurrentNode: "m", NextHop: "z", SentTick: 0, Msg: RouteDiscover{
		Src: "a", Dst: "z", Route: []string{"a", "m"},
	}}

	produced := z.HandlePacket(&recordingSink{}, env, 1)
	if len(produced) == 0 {
		t.Fatal("expected at least a RouteResponse")
	}
	rr, ok := produced[0].Msg.(RouteResponse)
	if !ok {
		t.Fatalf("produced[0] = %#v, want RouteResponse", produced[0])
	}
	if rr.LAT != 42 || produced[0].NextHop != "m" {
		t.Fatalf("rr = %#v, envelope = %#v", rr, produced[0])
	}
}

func TestNode_HandlePacket_RouteResponseInstallsRMTAndForwards(t *testing.T) {
	// Gamma < 1 and a high own-lat (so the min() clamp doesn't mask the
	// discount math) make the discount anchor tick observable: anchoring
	// on the current tick (6) should yield 0.5*6+50=53, whereas wrongly
	// anchoring on the envelope's stale SentTick (5) would yield 52.5.
	m := NewNode("m", 0, 0, 1.0, WithConstants(Constants{Gamma: 0.5}))
	m.lat = 1000

	env := Envelope{CurrentNode: "z", NextHop: "m", SentTick: 5, Msg: RouteResponse{
		Src: "a", Dst: "z", LAT: 100, Discount: 0, Route: []string{"a", "m"},
	}}

	produced := m.HandlePacket(&recordingSink{}, env, 6)

	entries := m.RMT("z")
	if len(entries) != 1 || entries[0].NextHop != "z" {
		t.Fatalf("RMT(z) after RR = %#v", entries)
	}
	if got, want := entries[0].LatR, 53.0; got != want {
		t.Fatalf("LatR = %v, want %v (discount must anchor on the handling tick, not SentTick)", got, want)
	}
	if len(produced) != 1 {
		t.Fatalf("expected forwarded RR toward a, got %#v", produced)
	}
	if produced[0].NextHop != "a" || produced[0].SentTick != 5 {
		t.Fatalf("forwarded envelope = %#v", produced[0])
	}
	rr, ok := produced[0].Msg.(RouteResponse)
	if !ok || rr.LAT != 53.0 {
		t.Fatalf("forwarded RR = %#v, want LAT 53", produced[0].Msg)
	}
}

func TestNode_HandlePacket_RoutePacketDeliveredAtDestination(t *testing.T) {
	z := NewNode("z", 0, 0, 1.0)
	sink := &recordingSink{}
	env := Envelope{CurrentNode: "m", NextHop: "z", Msg: RoutePacket{Src: "a", Dst: "z", Payload: 1}}

	produced := z.HandlePacket(sink, env, 3)
	if produced != nil {
		t.Fatalf("expected no forwarding at the destination, got %#v", produced)
	}
	if z.NumRPReceived("a") != 1 {
		t.Fatalf("NumRPReceived(a) = %d, want 1", z.NumRPReceived("a"))
	}
	if len(sink.packets) != 1 || sink.packets[0].Event != "delivered" {
		t.Fatalf("sink.packets = %#v", sink.packets)
	}
}

func TestNode_HandlePacket_RoutePacketNoRouteEmitsRouteError(t *testing.T) {
	m := NewNode("m", 0, 0, 1.0)
	env := Envelope{CurrentNode: "a", NextHop: "m", Msg: RoutePacket{Src: "a", Dst: "z", Payload: 7}}

	produced := m.HandlePacket(&recordingSink{}, env, 3)
	if len(produced) != 1 {
		t.Fatalf("expected one RouteError, got %#v", produced)
	}
	re, ok := produced[0].Msg.(RouteError)
	if !ok || re.Code != 7 || produced[0].NextHop != "a" {
		t.Fatalf("produced[0] = %#v", produced[0])
	}
}

func TestNode_HandlePacket_RouteErrorAtSourceRetries(t *testing.T) {
	a := NewNode("a", 0, 0, 1.0)
	a.rmt["z"] = []RMTEntry{{NextHop: "bad", LatR: 10}, {NextHop: "good", LatR: 5}}

	sink := &recordingSink{}
	env := Envelope{CurrentNode: "bad", NextHop: "a", Msg: RouteError{Src: "a", Dst: "z", Code: 3}}

	produced := a.HandlePacket(sink, env, 10)

	for _, e := range a.RMT("z") {
		if e.NextHop == "bad" {
			t.Fatal("bad next hop should have been purged from the RMT")
		}
	}
	if len(produced) != 1 {
		t.Fatalf("expected the retried RP to be returned, got %#v", produced)
	}
	rp, ok := produced[0].Msg.(RoutePacket)
	if !ok || rp.Payload != 3 {
		t.Fatalf("retried packet = %#v, want payload 3", produced[0])
	}
	if len(sink.errors) != 1 || !sink.errors[0].Recoverable {
		t.Fatalf("expected one recoverable error record, got %#v", sink.errors)
	}
}
