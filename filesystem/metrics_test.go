package filesystem

import (
	"io"
	"testing"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Not parallel: the counters are process wide.
func TestMetricsNamespace(t *testing.T) {
	ns := NewMetricsNamespace(newTestFS(t, config.PerNodeLock))
	count := func(op, outcome string) float64 {
		return testutil.ToFloat64(namespaceOperations.WithLabelValues(op, outcome))
	}
	createOK, createFail := count("create", "success"), count("create", "failure")
	lookupOK, moveFail := count("lookup", "success"), count("move", "failure")
	printOK := count("print", "success")

	require.NoError(t, ns.Create("a", tecnicofs.DirNode))
	assert.Error(t, ns.Create("a", tecnicofs.DirNode))
	_, err := ns.Lookup("a")
	require.NoError(t, err)
	assert.Error(t, ns.Move("missing", "b"))
	require.NoError(t, ns.PrintTree(io.Discard))

	_, err = ns.Stat("a")
	require.NoError(t, err)
	entries, err := ns.ReadDir("")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	require.NoError(t, ns.Delete("a"))

	assert.Equal(t, createOK+1, count("create", "success"))
	assert.Equal(t, createFail+1, count("create", "failure"))
	assert.Equal(t, lookupOK+1, count("lookup", "success"))
	assert.Equal(t, moveFail+1, count("move", "failure"))
	assert.Equal(t, printOK+1, count("print", "success"))

	// registering twice must not panic
	assert.NotPanics(t, func() { NewMetricsNamespace(newTestFS(t, config.GlobalLock)) })
}
