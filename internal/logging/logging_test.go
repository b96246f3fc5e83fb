package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewHonoursLevel(t *testing.T) {
	log, err := New("prod", "warn", "")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.WarnLevel))
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New("dev", "loud", "")
	assert.Error(t, err)

	_, err = New("dev", "info", "xml")
	assert.Error(t, err)
}
