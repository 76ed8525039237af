package telemetry

import "testing"

func TestBufferSink_PacketRingIsBounded(t *testing.T) {
	b := NewBufferSink(2)
	b.Packet(PacketRecord{Payload: 1})
	b.Packet(PacketRecord{Payload: 2})
	b.Packet(PacketRecord{Payload: 3})

	got := b.PacketRecords()
	if len(got) != 2 {
		t.Fatalf("len(PacketRecords()) = %d, want 2", len(got))
	}
	if got[0].Payload != 2 || got[1].Payload != 3 {
		t.Fatalf("PacketRecords() = %#v, want oldest evicted", got)
	}
}

func TestBufferSink_ErrorCountUnbounded(t *testing.T) {
	b := NewBufferSink(1)
	b.Error(ErrorRecord{Node: "a"})
	b.Error(ErrorRecord{Node: "b"})
	if b.ErrorCount() != 2 {
		t.Fatalf("ErrorCount() = %d, want 2", b.ErrorCount())
	}
}

func TestMultiSink_FansOutAndCountsErrors(t *testing.T) {
	a := NewBufferSink(10)
	b := NewBufferSink(10)
	m := NewMultiSink(a, b, nil)

	m.Error(ErrorRecord{Node: "x"})
	m.Packet(PacketRecord{Payload: 1})

	if a.ErrorCount() != 1 || b.ErrorCount() != 1 {
		t.Fatalf("a=%d b=%d, want both to observe the error", a.ErrorCount(), b.ErrorCount())
	}
	if m.ErrorCount() != 1 {
		t.Fatalf("MultiSink.ErrorCount() = %d, want 1", m.ErrorCount())
	}
	if len(a.PacketRecords()) != 1 || len(b.PacketRecords()) != 1 {
		t.Fatal("expected the packet to fan out to both sinks")
	}
}
