package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/skycast/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	prev := logger.Logger()
	t.Cleanup(func() { logger.Replace(prev) })

	require.NoError(t, ConfigureLogging("debug"))
	require.NoError(t, ConfigureLogging(""))
}
