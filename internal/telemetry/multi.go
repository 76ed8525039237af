package telemetry

// MultiSink fans every event out to a set of underlying sinks, in order.
// It lets the CLI layer combine, say, a FileSink for human-readable logs
// with a PrometheusSink for scraping, without either backend knowing
// about the other.
type MultiSink struct {
	sinks      []Sink
	errorCount int
}

// NewMultiSink builds a MultiSink over sinks, skipping any nil entries.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// ErrorCount returns the total number of error records ever recorded
// across every tick, independent of which backends are wired in.
func (m *MultiSink) ErrorCount() int { return m.errorCount }

func (m *MultiSink) Full(r FullRecord) {
	for _, s := range m.sinks {
		s.Full(r)
	}
}

func (m *MultiSink) Packet(r PacketRecord) {
	for _, s := range m.sinks {
		s.Packet(r)
	}
}

func (m *MultiSink) Error(r ErrorRecord) {
	m.errorCount++
	for _, s := range m.sinks {
		s.Error(r)
	}
}

func (m *MultiSink) Performance(r PerformanceRecord) {
	for _, s := range m.sinks {
		s.Performance(r)
	}
}

func (m *MultiSink) Energy(r EnergyRecord) {
	for _, s := range m.sinks {
		s.Energy(r)
	}
}
