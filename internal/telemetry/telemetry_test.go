package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Enabled: true},
		{OTLPEndpoint: "localhost:4317"},
	} {
		shutdown, err := Init(context.Background(), cfg)
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		assert.NoError(t, shutdown(context.Background()))
	}
}
