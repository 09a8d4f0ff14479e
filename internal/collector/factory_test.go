package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subpirate/analyzer/internal/config"
)

func TestNewSelectsMode(t *testing.T) {
	c, err := New(config.CollectorSettings{Mode: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)

	c, err = New(config.CollectorSettings{Mode: "public", UserAgent: "analyzer-test/1.0"})
	require.NoError(t, err)
	assert.IsType(t, &PublicClient{}, c)
}

func TestNewPublicModeRequiresUserAgent(t *testing.T) {
	_, err := New(config.CollectorSettings{Mode: "public"})
	assert.ErrorContains(t, err, "user agent")
}

func TestNewUnknownMode(t *testing.T) {
	_, err := New(config.CollectorSettings{Mode: "carrier_pigeon"})
	assert.ErrorContains(t, err, "unknown collector mode")
}
