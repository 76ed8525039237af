package telemetry

// BufferSink is a trivial append-only in-memory Sink, the minimum
// backend the core's resource model requires (§5, "implementations
// back it with a trivial append-only buffer"). The packet stream is
// additionally bounded by a ring so a long-running simulation does not
// grow memory without limit, mirroring the original implementation's
// PKT_INFO_MAX_LINES behavior.
type BufferSink struct {
	full        []FullRecord
	packets     []PacketRecord
	packetLimit int
	errors      []ErrorRecord
	performance []PerformanceRecord
	energy      []EnergyRecord

	errorCount int
}

// NewBufferSink builds a BufferSink whose packet stream is capped at
// packetRingSize entries (oldest evicted first). A non-positive size
// means unbounded.
func NewBufferSink(packetRingSize int) *BufferSink {
	return &BufferSink{packetLimit: packetRingSize}
}

func (b *BufferSink) Full(r FullRecord) {
	b.full = append(b.full, r)
}

func (b *BufferSink) Packet(r PacketRecord) {
	b.packets = append(b.packets, r)
	if b.packetLimit > 0 && len(b.packets) > b.packetLimit {
		b.packets = b.packets[len(b.packets)-b.packetLimit:]
	}
}

func (b *BufferSink) Error(r ErrorRecord) {
	b.errors = append(b.errors, r)
	b.errorCount++
}

func (b *BufferSink) Performance(r PerformanceRecord) {
	b.performance = append(b.performance, r)
}

func (b *BufferSink) Energy(r EnergyRecord) {
	b.energy = append(b.energy, r)
}

// ErrorCount returns the total number of error records ever recorded,
// independent of the bounded streams above.
func (b *BufferSink) ErrorCount() int { return b.errorCount }

// FullRecords returns every recorded full-stream entry.
func (b *BufferSink) FullRecords() []FullRecord { return b.full }

// PacketRecords returns the current (possibly truncated) packet ring.
func (b *BufferSink) PacketRecords() []PacketRecord { return b.packets }

// ErrorRecords returns every recorded error.
func (b *BufferSink) ErrorRecords() []ErrorRecord { return b.errors }

// PerformanceRecords returns every recorded end-of-run performance entry.
func (b *BufferSink) PerformanceRecords() []PerformanceRecord { return b.performance }

// EnergyRecords returns every recorded energy snapshot.
func (b *BufferSink) EnergyRecords() []EnergyRecord { return b.energy }
