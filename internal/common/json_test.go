package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON_StripsMarkdownFences(t *testing.T) {
	type reply struct {
		Topic string `json:"topic"`
	}
	out, err := ParseJSON[reply]("Here you go:\n```json\n{\"topic\": \"ocean currents\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "ocean currents", out.Topic)
}

func TestParseJSON_Array(t *testing.T) {
	out, err := ParseJSON[[]string](`The list is ["a", "b"] as requested.`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestParseJSON_NoPayload(t *testing.T) {
	_, err := ParseJSON[map[string]any]("sorry, I cannot answer that")
	assert.Error(t, err)
}
