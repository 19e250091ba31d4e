package logger

import (
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, production := range []bool{true, false} {
		log, err := New("resolver", production)
		require.NoError(t, err)
		require.NotNil(t, log)
		log.Info("message", "key", "value")
	}
}

func TestWrapCapturesOutput(t *testing.T) {
	var lines []string
	sink := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 1})

	log := Wrap("resolver", sink)
	log.Info("resolved", "did", "did:web:example.com")
	log.Debug("fetching presentation", "endpoint", "https://example.com/vp.json")

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "resolver")
	assert.Contains(t, lines[0], "did:web:example.com")
	assert.Contains(t, lines[1], "vp.json")
}

func TestDebugGatedByVerbosity(t *testing.T) {
	var lines []string
	sink := funcr.New(func(prefix, args string) {
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{Verbosity: 0})

	log := Wrap("resolver", sink)
	log.Info("kept")
	log.Debug("dropped")

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "kept")
}

func TestSubLogger(t *testing.T) {
	var prefixes []string
	sink := funcr.New(func(prefix, args string) {
		prefixes = append(prefixes, prefix)
	}, funcr.Options{})

	Wrap("resolver", sink).New("proof").Info("verified")

	require.Len(t, prefixes, 1)
	assert.Contains(t, prefixes[0], "resolver/proof")
}
