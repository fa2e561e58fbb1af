package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentTagsEveryLogLine(t *testing.T) {
	var buf bytes.Buffer
	base := log.NewWithOptions(&buf, log.Options{Formatter: log.JSONFormatter})

	logger := Component(base, "ingest.engine")
	logger.Info("cycle_complete", "league_id", "NBA")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ingest.engine", line["component"])
	assert.Equal(t, "NBA", line["league_id"])
}

func TestComponentLeavesBaseUntagged(t *testing.T) {
	var buf bytes.Buffer
	base := log.NewWithOptions(&buf, log.Options{Formatter: log.JSONFormatter})

	_ = Component(base, "ensemble")
	base.Info("base_still_plain")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "component")
}
