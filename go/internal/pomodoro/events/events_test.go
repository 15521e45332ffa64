package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, Topic("group:7"), GroupTopic(7))
	assert.Equal(t, Topic("user:42"), UserTopic(42))

	kind, id, err := ParseTopic("group:7")
	require.NoError(t, err)
	assert.Equal(t, "group", kind)
	assert.Equal(t, int64(7), id)

	for _, bad := range []Topic{"", "group", "team:1", "user:x"} {
		_, _, err := ParseTopic(bad)
		assert.Error(t, err, bad)
	}
}

func TestTimerUpdateFlattensAttribution(t *testing.T) {
	msg := TimerUpdate(models.ActionPause, map[string]int{"remaining_seconds": 10}, models.SyncPolicyForced, "ada")
	b, err := json.Marshal(msg)
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(b, &frame))
	assert.Equal(t, "timer_update", frame["type"])
	assert.Equal(t, "paused", frame["action"])
	assert.Equal(t, "forced", frame["sync_mode"])
	assert.Equal(t, "ada", frame["paused_by"])
	assert.Equal(t, float64(10), frame["data"].(map[string]any)["remaining_seconds"])
}

func TestErrorFrame(t *testing.T) {
	b, err := json.Marshal(Error("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"nope"}`, string(b))
}
