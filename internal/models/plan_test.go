package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamChunk_ErrorWireFormat(t *testing.T) {
	chunk := StreamChunk{
		Type:       ChunkError,
		ProviderID: "semrush",
		Error: &ErrorInfo{
			Message:    "upstream timeout",
			Code:       "provider_error",
			ProviderID: "semrush",
		},
	}

	raw, err := json.Marshal(chunk)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "error", decoded["type"])

	payload, ok := decoded["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "upstream timeout", payload["message"])
	assert.Equal(t, "provider_error", payload["code"])
	assert.Equal(t, "semrush", payload["provider_id"])
}

func TestStreamChunk_ProgressOmitsError(t *testing.T) {
	chunk := StreamChunk{
		Type:     ChunkProgress,
		Progress: &ProgressInfo{Completed: 1, Total: 3},
	}

	raw, err := json.Marshal(chunk)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "progress", decoded["type"])
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "provider_id")
}
