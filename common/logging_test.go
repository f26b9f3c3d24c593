package common

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&LoggingOpts{JSON: true, Service: "configurator", Version: "v1.2.3", Output: &buf})

	log.Debug("hidden")
	log.Info("visible", "eid", 30101)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "configurator", record["service"])
	assert.Equal(t, "v1.2.3", record["version"])
	assert.EqualValues(t, 30101, record["eid"])
}

func TestSetupLoggerDebug(t *testing.T) {
	var buf bytes.Buffer
	log := SetupLogger(&LoggingOpts{Debug: true, Output: &buf})

	log.Debug("details")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.NotContains(t, buf.String(), "service=")
}
