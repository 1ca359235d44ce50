package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	pretty := false
	Configure(Config{Level: "debug", Output: &buf, Service: "vidsample", Pretty: &pretty})
	t.Cleanup(func() { Configure(Config{}) })

	logger := WithComponent("scheduler")
	logger.Debug().Int(FieldSample, 2).Msg("segment advanced")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "vidsample", entry[FieldService])
	assert.Equal(t, "scheduler", entry[FieldComponent])
	assert.Equal(t, float64(2), entry[FieldSample])
	assert.Equal(t, "debug", entry["level"])
}

func TestConfigureLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	pretty := false
	Configure(Config{Level: "warn", Output: &buf, Pretty: &pretty})
	t.Cleanup(func() { Configure(Config{}) })

	base := Base()
	base.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	base.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRunIDUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
}
