package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, "location-hierarchy", "production")

	log.Info().Str("location_id", "ward-1").Msg("loaded")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "location-hierarchy", entry["service"])
	assert.Equal(t, "ward-1", entry["location_id"])
	assert.Equal(t, "loaded", entry["message"])
}

func TestLoggerFromContext_WithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	initLogger(&buf, "svc", "production")

	logger := LoggerFromContext(context.Background())
	logger.Info().Msg("no trace")

	assert.NotContains(t, buf.String(), "trace_id")
}
