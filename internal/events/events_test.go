package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovetingyuan/bili-live/internal/monitor"
)

func TestFromResult(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	res := monitor.Result{
		NewlyLive:   []monitor.Transition{{ID: "1", LiveUp: monitor.LiveUp{Name: "alice", Title: "hi", RoomID: 11}}},
		WentOffline: []monitor.Transition{{ID: "2", LiveUp: monitor.LiveUp{Name: "bob", RoomID: 22}}},
	}

	evs := FromResult(res, "cycle-1", at)

	require.Len(t, evs, 2)
	assert.Equal(t, TypeLive, evs[0].Type)
	assert.Equal(t, "alice", evs[0].Name)
	assert.Equal(t, TypeOffline, evs[1].Type)
	assert.Equal(t, int64(22), evs[1].RoomID)
	assert.Equal(t, time.UTC, evs[0].At.Location())
	assert.Equal(t, "cycle-1", evs[1].CycleID)
}

func TestEncode(t *testing.T) {
	data, err := encode(LiveEvent{Type: TypeLive, ID: "1", Name: "alice", RoomID: 11})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "alice", got["uname"])
	assert.InDelta(t, 11, got["roomId"], 0)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.Publish(t.Context(), LiveEvent{}))
	require.NoError(t, p.Close())
}
