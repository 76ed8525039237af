package ecr

import "fmt"

// ErrDeadSource is reported when attempt_to_send_packet is called on a
// node whose battery has reached zero.
type ErrDeadSource struct {
	Node string
}

func (e ErrDeadSource) Error() string {
	return fmt.Sprintf("node %q is dead and cannot send packets", e.Node)
}

// ErrDiscoveryTimeout is reported when an outstanding route discovery
// has aged past RDTimeout with no response.
type ErrDiscoveryTimeout struct {
	Node string
	Dst  string
}

func (e ErrDiscoveryTimeout) Error() string {
	return fmt.Sprintf("node %q: route discovery to %q timed out", e.Node, e.Dst)
}
