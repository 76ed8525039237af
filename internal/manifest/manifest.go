// Package manifest parses the text node/link and packet-schedule
// manifest formats described in the protocol's external interfaces.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kprusa/ecrsim/internal/ecr"
)

// ErrParseManifestLine is returned when a manifest line cannot be
// parsed into a recognized form.
type ErrParseManifestLine struct {
	Line int
	Msg  string
}

func (e ErrParseManifestLine) Error() string {
	return fmt.Sprintf("parse manifest line %d: %s", e.Line, e.Msg)
}

// genLines yields non-blank, non-comment lines from r along with their
// 1-indexed line number.
func genLines(r io.Reader) ([]string, []int, error) {
	var lines []string
	var nums []int

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
		nums = append(nums, lineNo)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return lines, nums, nil
}

// LoadNodes parses the node manifest format (§6):
//
//	name x y battery   declares a node
//	a b                declares a bidirectional link between two
//	                    previously declared nodes
//
// and returns the resulting, validated Topology.
func LoadNodes(r io.Reader, opts ...ecr.Option) (*ecr.Topology, error) {
	lines, nums, err := genLines(r)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*ecr.Node)
	for i, line := range lines {
		fields := strings.Fields(line)
		switch len(fields) {
		case 4:
			name := fields[0]
			x, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("x is not an integer: %q", fields[1])}
			}
			y, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("y is not an integer: %q", fields[2])}
			}
			battery, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("battery is not a float: %q", fields[3])}
			}
			if battery < 0 || battery > 1 {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("battery must be in [0,1]: %v", battery)}
			}
			if _, exists := nodes[name]; exists {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("duplicate node name: %q", name)}
			}
			nodes[name] = ecr.NewNode(name, x, y, battery, opts...)

		case 2:
			a, b := fields[0], fields[1]
			nodeA, ok := nodes[a]
			if !ok {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("link references unknown node: %q", a)}
			}
			nodeB, ok := nodes[b]
			if !ok {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("link references unknown node: %q", b)}
			}
			nodeA.AddLink(b)
			nodeB.AddLink(a)

		default:
			return nil, ErrParseManifestLine{Line: nums[i], Msg: "must be 'name x y battery' or 'a b'"}
		}
	}

	return ecr.NewTopology(nodes)
}

// LoadPackets parses the packet-schedule manifest format (§6):
//
//	src dst tick         send as many as possible, equivalent to count -1
//	src dst tick count   send count packets starting at tick
func LoadPackets(r io.Reader) (*ecr.Scheduler, error) {
	lines, nums, err := genLines(r)
	if err != nil {
		return nil, err
	}

	var entries []ecr.ScheduleEntry
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 3 && len(fields) != 4 {
			return nil, ErrParseManifestLine{Line: nums[i], Msg: "must be 'src dst tick' or 'src dst tick count'"}
		}

		src, dst := fields[0], fields[1]
		tick, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("tick is not an integer: %q", fields[2])}
		}

		count := -1
		if len(fields) == 4 {
			count, err = strconv.Atoi(fields[3])
			if err != nil {
				return nil, ErrParseManifestLine{Line: nums[i], Msg: fmt.Sprintf("count is not an integer: %q", fields[3])}
			}
		}

		entries = append(entries, ecr.ScheduleEntry{Tick: tick, Src: src, Dst: dst, Remaining: count})
	}

	return ecr.NewScheduler(entries...), nil
}
