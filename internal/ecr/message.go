package ecr

// Kind discriminates the five protocol message variants. Dispatch on a
// received Envelope happens in exactly one place, Node.HandlePacket,
// which switches on the message's concrete variant type.
type Kind int

const (
	KindRD Kind = iota
	KindRR
	KindRP
	KindRU
	KindRE
)

func (k Kind) String() string {
	switch k {
	case KindRD:
		return "RD"
	case KindRR:
		return "RR"
	case KindRP:
		return "RP"
	case KindRU:
		return "RU"
	case KindRE:
		return "RE"
	default:
		return "UNKNOWN"
	}
}

// Message is implemented by each of the five closed protocol variants.
type Message interface {
	Kind() Kind
}

// RouteDiscover (RD) floods outward looking for a path to Dst. Route
// accumulates the names traversed so far, starting with Src.
type RouteDiscover struct {
	Src   string
	Dst   string
	Route []string
}

func (RouteDiscover) Kind() Kind { return KindRD }

// RouteResponse (RR) walks Route in reverse, installing an RMT entry at
// every hop on the way back to Src.
type RouteResponse struct {
	Src      string
	Dst      string
	LAT      float64
	Discount int
	Route    []string
}

func (RouteResponse) Kind() Kind { return KindRR }

// RoutePacket (RP) is the application payload. Payload is the
// per-destination sequence number assigned by the sending node.
type RoutePacket struct {
	Src      string
	Dst      string
	LAT      float64
	Discount int
	Payload  int
}

func (RoutePacket) Kind() Kind { return KindRP }

// RouteUpdate (RU) carries a forwarder's improved view of a route's
// lat_r/discount back toward the route's originator.
type RouteUpdate struct {
	Src      string
	SrcRoute string
	DstRoute string
	LAT      float64
	Discount int
}

func (RouteUpdate) Kind() Kind { return KindRU }

// RouteError (RE) reports that an intermediate node had no route for
// Dst while forwarding payload Code, and walks Route back to Src.
type RouteError struct {
	Src   string
	Dst   string
	Code  int
	Route []string
}

func (RouteError) Kind() Kind { return KindRE }

// Envelope is the wire wrapper around a Message: who sent it, who should
// handle it next, and when it was put on the wire.
type Envelope struct {
	CurrentNode string
	NextHop     string
	SentTick    int
	Msg         Message
}
