package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNodes_ParsesNodesAndLinks(t *testing.T) {
	input := `
# three node line
a 0 0 1.0
b 1 0 1.0
c 2 0 1.0

a b
b c
`
	topo, err := LoadNodes(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, topo.Names(), 3)
	assert.True(t, topo.Node("a").HasLink("b"))
	assert.True(t, topo.Node("b").HasLink("a"))
}

func TestLoadNodes_RejectsBatteryOutOfRange(t *testing.T) {
	_, err := LoadNodes(strings.NewReader("a 0 0 1.5\n"))
	assert.Error(t, err)
}

func TestLoadNodes_RejectsUnknownLinkReference(t *testing.T) {
	input := "a 0 0 1.0\na z\n"
	_, err := LoadNodes(strings.NewReader(input))
	assert.Error(t, err)
}

func TestLoadNodes_RejectsDuplicateName(t *testing.T) {
	input := "a 0 0 1.0\na 1 1 1.0\n"
	_, err := LoadNodes(strings.NewReader(input))
	assert.Error(t, err)
}

func TestLoadPackets_ParsesWithAndWithoutCount(t *testing.T) {
	input := `
a b 5
c d 10 3
`
	scheduler, err := LoadPackets(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, scheduler.Len())

	due := scheduler.PopDue(5)
	require.Len(t, due, 1)
	assert.Equal(t, -1, due[0].Remaining)
}

func TestLoadPackets_RejectsMalformedLine(t *testing.T) {
	_, err := LoadPackets(strings.NewReader("a b\n"))
	assert.Error(t, err)
}
