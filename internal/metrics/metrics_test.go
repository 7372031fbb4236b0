package metrics

import (
	"os"
	"path/filepath"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	before := promtest.ToFloat64(Exports.WithLabelValues("single"))
	Exports.WithLabelValues("single").Inc()
	assert.Equal(t, before+1, promtest.ToFloat64(Exports.WithLabelValues("single")))

	path := filepath.Join(t.TempDir(), "stemma.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `stemma_exports_total{kind="single"}`)
	assert.NotContains(t, string(data), "go_goroutines")
}

func TestWriteTextfile_EmptyPath(t *testing.T) {
	assert.NoError(t, WriteTextfile(""))
}
