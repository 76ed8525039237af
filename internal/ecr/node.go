package ecr

import (
	"sort"

	"github.com/kprusa/ecrsim/internal/logger"
	"github.com/kprusa/ecrsim/internal/telemetry"
)

// RMTEntry is one alternative route a node knows about to some
// destination: the direct neighbor to forward through, the estimated
// last-alive-tick of the bottleneck node along that route, and the
// number of discount hops already compounded into LatR.
type RMTEntry struct {
	NextHop string
	LatR    float64
	DF      int
}

// hopRecord is an (tick, adjacent-hop) audit entry, used for both
// rp_sent and rp_received trails.
type hopRecord struct {
	Tick int
	Hop  string
}

// Node is a single router: identity, location, battery, and all routing
// and bookkeeping state described in the data model. Nodes refer to
// neighbors and routes by name only; a Node never holds a reference to
// another Node, so graphs built from it have no reference cycles.
type Node struct {
	name string
	x, y int

	battery float64
	links   map[string]struct{}

	lat     float64
	pHat    float64
	pSample float64

	rmt map[string][]RMTEntry

	rdInFlight  map[string]int
	ruInFlight  map[string]int
	rdResponded map[string]map[string]int

	numRPSent     map[string]int
	rpSent        map[string][]hopRecord
	numRPReceived map[string]int
	rpReceived    map[string][]hopRecord

	constants Constants
	log       logger.Logger
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger attaches a structured logger to the node. Defaults to
// logger.NopLogger.
func WithLogger(l logger.Logger) Option {
	return func(n *Node) { n.log = l }
}

// WithConstants overrides the default tunable constants. The caller that
// builds the nodes normally supplies the same Constants it gives the
// Engine.
func WithConstants(c Constants) Option {
	return func(n *Node) { n.constants = c }
}

// WithLinks pre-populates the node's neighbor set. Topology also wires
// links directly; this option is mainly useful in tests.
func WithLinks(links ...string) Option {
	return func(n *Node) {
		for _, l := range links {
			n.links[l] = struct{}{}
		}
	}
}

// NewNode constructs a Node with full battery bookkeeping initialized
// and no known routes.
func NewNode(name string, x, y int, battery float64, opts ...Option) *Node {
	n := &Node{
		name:          name,
		x:             x,
		y:             y,
		battery:       battery,
		links:         make(map[string]struct{}),
		rmt:           make(map[string][]RMTEntry),
		rdInFlight:    make(map[string]int),
		ruInFlight:    make(map[string]int),
		rdResponded:   make(map[string]map[string]int),
		numRPSent:     make(map[string]int),
		rpSent:        make(map[string][]hopRecord),
		numRPReceived: make(map[string]int),
		rpReceived:    make(map[string][]hopRecord),
		constants:     DefaultConstants(),
		log:           logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the node's identity. Two nodes with equal names are
// treated as equal for every indexing purpose in this package.
func (n *Node) Name() string { return n.name }

// Location returns the node's collaborator-only (x, y) position.
func (n *Node) Location() (int, int) { return n.x, n.y }

// Battery returns the current battery level in [0, 1].
func (n *Node) Battery() float64 { return n.battery }

// LAT returns the node's last-alive-tick estimate.
func (n *Node) LAT() float64 { return n.lat }

// IsAlive reports whether the node's battery is still above zero.
func (n *Node) IsAlive() bool { return n.battery > 0.0 }

// AddLink records a neighbor. Topology calls this for both endpoints
// when loading a bidirectional link declaration.
func (n *Node) AddLink(neighbor string) { n.links[neighbor] = struct{}{} }

// HasLink reports whether neighbor is a direct neighbor of this node.
func (n *Node) HasLink(neighbor string) bool {
	_, ok := n.links[neighbor]
	return ok
}

// Links returns the node's neighbor names in sorted order.
func (n *Node) Links() []string {
	out := make([]string, 0, len(n.links))
	for l := range n.links {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// NumRPSent returns how many RP payloads this node has sent toward dst.
func (n *Node) NumRPSent(dst string) int { return n.numRPSent[dst] }

// NumRPReceived returns how many RP payloads this node has received
// that originated from src.
func (n *Node) NumRPReceived(src string) int { return n.numRPReceived[src] }

// RMT returns a copy of the routing multi-table entries for dst, in
// current (possibly stale) order. Call SortRMT first for a freshly
// ordered view.
func (n *Node) RMT(dst string) []RMTEntry {
	entries := n.rmt[dst]
	out := make([]RMTEntry, len(entries))
	copy(out, entries)
	return out
}

// Progress advances the node by one tick (§4.2.1). A dead node stays
// clamped at zero battery and does nothing else.
func (n *Node) Progress(tick int, updateEstimates bool) {
	if !n.IsAlive() {
		n.battery = 0.0
		return
	}

	n.battery -= n.constants.BatteryDrainConstant + n.pSample*n.constants.BatteryDrainPerPacket
	if n.battery < 0 {
		n.battery = 0
	}

	if updateEstimates {
		n.pHat = n.constants.EMAAlpha*n.pHat + (1-n.constants.EMAAlpha)*n.pSample
		n.lat = float64(tick) + n.battery/(n.constants.BatteryDrainConstant+n.pHat*n.constants.BatteryDrainPerPacket)
	}

	for dst, entries := range n.rmt {
		for i, e := range entries {
			if n.lat < e.LatR {
				entries[i] = RMTEntry{NextHop: e.NextHop, LatR: n.lat, DF: 0}
			}
		}
		n.rmt[dst] = entries
	}

	n.pSample = 0
}

// SortRMT reorders every destination's entry list by descending LatR,
// tie-breaking on the maximum LatR among the entries stored for the next
// hop as a destination (also descending), and finally by next hop name
// ascending so the ordering is fully deterministic.
func (n *Node) SortRMT() {
	for _, entries := range n.rmt {
		if len(entries) < 2 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			ti := n.nextHopTieBreak(entries[i].NextHop)
			tj := n.nextHopTieBreak(entries[j].NextHop)
			if entries[i].LatR != entries[j].LatR {
				return entries[i].LatR > entries[j].LatR
			}
			if ti != tj {
				return ti > tj
			}
			return entries[i].NextHop < entries[j].NextHop
		})
	}
}

// nextHopTieBreak returns the largest LatR among the entries stored
// under the destination key equal to nextHop — i.e. the direct route
// the node itself has toward that neighbor, if any.
func (n *Node) nextHopTieBreak(nextHop string) float64 {
	best := 0.0
	for _, e := range n.rmt[nextHop] {
		if e.LatR > best {
			best = e.LatR
		}
	}
	return best
}

// UpdateOrCreateRMTEntry upserts the entry for (dst, nextHop) using the
// discount equation (§4.2.3) and returns the stored (LatR, DF).
func (n *Node) UpdateOrCreateRMTEntry(dst, nextHop string, latRIn float64, dfIn int, tick int) (float64, int) {
	discounted := float64(tick) + maxFloat(0, n.constants.Gamma*(latRIn-float64(tick)))
	latR := minFloat(n.lat, discounted)

	df := 0
	if latR != n.lat {
		df = dfIn + 1
	}

	entries := n.rmt[dst]
	idx := -1
	for i, e := range entries {
		if e.NextHop == nextHop {
			idx = i
			break
		}
	}
	if idx == -1 {
		entries = append(entries, RMTEntry{NextHop: nextHop, LatR: latR, DF: df})
	} else {
		entries[idx] = RMTEntry{NextHop: nextHop, LatR: latR, DF: df}
	}
	n.rmt[dst] = entries

	return latR, df
}

// GetBestRoute sorts the RMT and returns the best known entry for dst.
// ok is false when no route is known.
func (n *Node) GetBestRoute(dst string) (entry RMTEntry, ok bool) {
	n.SortRMT()
	entries := n.rmt[dst]
	if len(entries) == 0 {
		return RMTEntry{}, false
	}
	return entries[0], true
}

// CleanupDeadNeighbor drops every RMT entry, for every destination,
// whose next hop is neighbor.
func (n *Node) CleanupDeadNeighbor(neighbor string) {
	for dst, entries := range n.rmt {
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.NextHop != neighbor {
				filtered = append(filtered, e)
			}
		}
		n.rmt[dst] = filtered
	}
}

// GenerateRouteDiscoverPackets emits one RD per distinct next hop
// appearing anywhere in the RMT (§4.2.6). When filter is non-nil, only
// next hops present in filter are used and rdInFlight bookkeeping is
// left untouched (a selective refresh, not a fresh discovery).
func (n *Node) GenerateRouteDiscoverPackets(dst string, tick int, filter map[string]struct{}) (packets []Envelope, timedOut bool) {
	if lastTick, inFlight := n.rdInFlight[dst]; inFlight && filter == nil {
		if lastTick+n.constants.RDTimeout <= tick {
			return nil, true
		}
		return nil, false
	}

	sent := make(map[string]struct{})
	for _, entries := range n.rmt {
		for _, e := range entries {
			if _, already := sent[e.NextHop]; already {
				continue
			}
			if filter != nil {
				if _, allowed := filter[e.NextHop]; !allowed {
					continue
				}
			}
			packets = append(packets, Envelope{
				CurrentNode: n.name,
				NextHop:     e.NextHop,
				SentTick:    tick,
				Msg: RouteDiscover{
					Src:   n.name,
					Dst:   dst,
					Route: []string{n.name},
				},
			})
			sent[e.NextHop] = struct{}{}
		}
	}

	if filter == nil {
		n.rdInFlight[dst] = tick
	}
	return packets, false
}

// AttemptToSendPacket is the application-layer entry point (§4.2.7). If
// msgNum is non-nil this is a retry (the RP payload number is reused and
// num_rp_sent is not incremented again).
func (n *Node) AttemptToSendPacket(sink telemetry.Sink, dst string, tick int, msgNum *int) (packets []Envelope, sent bool, failed bool) {
	if !n.IsAlive() {
		sink.Error(telemetry.ErrorRecord{Tick: tick, Node: n.name, Message: ErrDeadSource{Node: n.name}.Error(), Recoverable: false})
		return nil, false, true
	}

	route, ok := n.GetBestRoute(dst)
	if ok {
		// A known route means no discovery for dst is outstanding any more.
		delete(n.rdInFlight, dst)

		payload := 0
		if msgNum != nil {
			payload = *msgNum
		} else {
			n.numRPSent[dst]++
			payload = n.numRPSent[dst]
		}

		packets = append(packets, Envelope{
			CurrentNode: n.name,
			NextHop:     route.NextHop,
			SentTick:    tick,
			Msg: RoutePacket{
				Src:      n.name,
				Dst:      dst,
				LAT:      route.LatR,
				Discount: route.DF,
				Payload:  payload,
			},
		})
		n.rpSent[RouteKey(n.name, dst)] = append(n.rpSent[RouteKey(n.name, dst)], hopRecord{Tick: tick, Hop: route.NextHop})
		sink.Packet(telemetry.PacketRecord{Tick: tick, Event: "sent", Src: n.name, Dst: dst, CurrentNode: n.name, NextHop: route.NextHop, Payload: payload})

		if payload%n.constants.RDResend == 0 {
			filter := make(map[string]struct{})
			for _, e := range n.rmt[dst] {
				if e.NextHop != route.NextHop {
					filter[e.NextHop] = struct{}{}
				}
			}
			extra, _ := n.GenerateRouteDiscoverPackets(dst, tick, filter)
			packets = append(packets, extra...)
		}

		return packets, true, false
	}

	rdPackets, timedOut := n.GenerateRouteDiscoverPackets(dst, tick, nil)
	if timedOut {
		sink.Error(telemetry.ErrorRecord{Tick: tick, Node: n.name, Message: ErrDiscoveryTimeout{Node: n.name, Dst: dst}.Error(), Recoverable: false})
		return nil, false, true
	}
	return rdPackets, false, false
}

// HandlePacket dispatches an inbound envelope by its message kind
// (§4.2.8). The caller guarantees envelope.NextHop == self and
// envelope.SentTick < tick; a dead node drops the packet silently.
func (n *Node) HandlePacket(sink telemetry.Sink, env Envelope, tick int) []Envelope {
	if !n.IsAlive() {
		return nil
	}

	var produced []Envelope
	switch msg := env.Msg.(type) {
	case RouteDiscover:
		produced = n.handleRouteDiscover(sink, env, msg, tick)
	case RouteResponse:
		produced = n.handleRouteResponse(env, msg, tick)
	case RoutePacket:
		produced = n.handleRoutePacket(sink, env, msg, tick)
	case RouteUpdate:
		produced = n.handleRouteUpdate(env, msg, tick)
	case RouteError:
		produced = n.handleRouteError(sink, env, msg, tick)
	}

	n.pSample += float64(len(produced))
	return produced
}

func (n *Node) handleRouteDiscover(sink telemetry.Sink, env Envelope, msg RouteDiscover, tick int) []Envelope {
	var produced []Envelope
	routeKey := RouteKey(msg.Src, msg.Dst)

	if n.name == msg.Dst {
		response := Envelope{
			CurrentNode: n.name,
			NextHop:     msg.Route[len(msg.Route)-1],
			SentTick:    tick,
			Msg: RouteResponse{
				Src:      msg.Src,
				Dst:      n.name,
				LAT:      n.lat,
				Discount: 0,
				Route:    append([]string(nil), msg.Route...),
			},
		}
		produced = append(produced, response)

		back, _ := n.GenerateRouteDiscoverPackets(msg.Src, tick, map[string]struct{}{env.CurrentNode: {}})
		produced = append(produced, back...)
		return produced
	}

	if !containsName(msg.Route, n.name) {
		lastResponded, seen := n.rdResponded[msg.Src][routeKey]
		if !seen {
			lastResponded = -n.constants.RDTimeout
		}
		if lastResponded < tick-n.constants.RDTimeout {
			if n.rdResponded[msg.Src] == nil {
				n.rdResponded[msg.Src] = make(map[string]int)
			}
			n.rdResponded[msg.Src][routeKey] = tick

			sentTo := map[string]struct{}{env.CurrentNode: {}}
			route := append(append([]string(nil), msg.Route...), n.name)
			for _, entries := range n.rmt {
				for _, e := range entries {
					if _, already := sentTo[e.NextHop]; already {
						continue
					}
					produced = append(produced, Envelope{
						CurrentNode: n.name,
						NextHop:     e.NextHop,
						SentTick:    tick,
						Msg: RouteDiscover{
							Src:   msg.Src,
							Dst:   msg.Dst,
							Route: append([]string(nil), route...),
						},
					})
					sentTo[e.NextHop] = struct{}{}
				}
			}
		}
	}
	return produced
}

func (n *Node) handleRouteResponse(env Envelope, msg RouteResponse, tick int) []Envelope {
	if len(msg.Route) == 0 || msg.Route[len(msg.Route)-1] != n.name {
		return nil
	}

	latR, df := n.UpdateOrCreateRMTEntry(msg.Dst, env.CurrentNode, msg.LAT, msg.Discount, tick)
	newRoute := msg.Route[:len(msg.Route)-1]

	if len(newRoute) == 0 {
		return nil
	}
	return []Envelope{{
		CurrentNode: n.name,
		NextHop:     newRoute[len(newRoute)-1],
		SentTick:    env.SentTick,
		Msg: RouteResponse{
			Src:      msg.Src,
			Dst:      msg.Dst,
			LAT:      latR,
			Discount: df,
			Route:    newRoute,
		},
	}}
}

func (n *Node) handleRoutePacket(sink telemetry.Sink, env Envelope, msg RoutePacket, tick int) []Envelope {
	routeKey := RouteKey(msg.Src, msg.Dst)

	if msg.Dst == n.name {
		n.numRPReceived[msg.Src]++
		n.rpReceived[routeKey] = append(n.rpReceived[routeKey], hopRecord{Tick: tick, Hop: env.CurrentNode})
		sink.Packet(telemetry.PacketRecord{Tick: tick, Event: "delivered", Src: msg.Src, Dst: msg.Dst, CurrentNode: env.CurrentNode, NextHop: n.name, Payload: msg.Payload})
		return nil
	}

	route, ok := n.GetBestRoute(msg.Dst)
	if !ok {
		return []Envelope{{
			CurrentNode: n.name,
			NextHop:     env.CurrentNode,
			SentTick:    tick,
			Msg: RouteError{
				Src:  msg.Src,
				Dst:  msg.Dst,
				Code: msg.Payload,
			},
		}}
	}

	latRUpdated := route.LatR
	if route.DF > 0 {
		latRUpdated = float64(tick) + (route.LatR-float64(tick))/n.constants.Gamma
	}
	dfUpdated := maxInt(route.DF-1, 0)

	var produced []Envelope
	if dfUpdated != msg.Discount || latRUpdated < msg.LAT {
		prevUpdate, haveUpdate := n.ruInFlight[routeKey]
		if _, haveBackRoute := n.rmt[msg.Src]; haveBackRoute && len(n.rmt[msg.Src]) > 0 {
			if !haveUpdate || prevUpdate <= tick-n.constants.RUMinInterval {
				n.ruInFlight[routeKey] = tick
				for _, back := range n.rmt[msg.Src] {
					produced = append(produced, Envelope{
						CurrentNode: n.name,
						NextHop:     back.NextHop,
						SentTick:    tick,
						Msg: RouteUpdate{
							Src:      n.name,
							SrcRoute: msg.Src,
							DstRoute: msg.Dst,
							LAT:      route.LatR,
							Discount: route.DF,
						},
					})
				}
			}
		}
	}

	forwarded := RoutePacket{
		Src:      msg.Src,
		Dst:      msg.Dst,
		LAT:      latRUpdated,
		Discount: dfUpdated,
		Payload:  msg.Payload,
	}
	produced = append(produced, Envelope{
		CurrentNode: n.name,
		NextHop:     route.NextHop,
		SentTick:    env.SentTick,
		Msg:         forwarded,
	})
	return produced
}

func (n *Node) handleRouteUpdate(env Envelope, msg RouteUpdate, tick int) []Envelope {
	latR, df := n.UpdateOrCreateRMTEntry(msg.DstRoute, env.CurrentNode, msg.LAT, msg.Discount, tick)

	if msg.SrcRoute == n.name {
		return nil
	}

	var produced []Envelope
	for _, back := range n.rmt[msg.SrcRoute] {
		produced = append(produced, Envelope{
			CurrentNode: n.name,
			NextHop:     back.NextHop,
			SentTick:    tick,
			Msg: RouteUpdate{
				Src:      n.name,
				SrcRoute: msg.SrcRoute,
				DstRoute: msg.DstRoute,
				LAT:      latR,
				Discount: df,
			},
		})
	}
	return produced
}

func (n *Node) handleRouteError(sink telemetry.Sink, env Envelope, msg RouteError, tick int) []Envelope {
	if n.name == msg.Src {
		entries := n.rmt[msg.Dst]
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.NextHop != env.CurrentNode {
				filtered = append(filtered, e)
			}
		}
		n.rmt[msg.Dst] = filtered

		sink.Error(telemetry.ErrorRecord{Tick: tick, Node: n.name, Message: "route error for payload to " + msg.Dst + ", retrying", Recoverable: true})

		code := msg.Code
		retried, _, _ := n.AttemptToSendPacket(sink, msg.Dst, tick, &code)
		return retried
	}

	route, ok := n.GetBestRoute(msg.Src)
	if !ok {
		return nil
	}
	return []Envelope{{
		CurrentNode: n.name,
		NextHop:     route.NextHop,
		SentTick:    env.SentTick,
		Msg: RouteError{
			Src:   msg.Src,
			Dst:   msg.Dst,
			Code:  msg.Code,
			Route: append(append([]string(nil), msg.Route...), n.name),
		},
	}}
}

func containsName(names []string, name string) bool {
	for _, c := range names {
		if c == name {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
