package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovetingyuan/bili-live/internal/bili"
)

func room(uname, title string, roomID int64, live bool) bili.Room {
	r := bili.Room{Uname: uname, Title: title, RoomID: roomID}
	if live {
		r.LiveStatus = 1
		r.Online = 1
	}
	return r
}

func TestApplyNewlyLive(t *testing.T) {
	snap := bili.Snapshot{
		"A": room("alice", "hello", 1, true),
		"B": room("bob", "", 2, false),
	}

	res := Apply(snap, LiveSet{})

	assert.True(t, res.Changed)
	assert.Equal(t, LiveSet{"A": {Name: "alice", Title: "hello", RoomID: 1}}, res.Updated)
	require.Len(t, res.NewlyLive, 1)
	assert.Equal(t, "A", res.NewlyLive[0].ID)
	assert.Empty(t, res.WentOffline)
}

func TestApplyWentOffline(t *testing.T) {
	prev := LiveSet{"A": {Name: "alice", Title: "hello", RoomID: 1}}

	res := Apply(bili.Snapshot{"A": room("alice", "hello", 1, false)}, prev)

	assert.True(t, res.Changed)
	assert.Empty(t, res.Updated)
	assert.Empty(t, res.NewlyLive)
	require.Len(t, res.WentOffline, 1)
	assert.Equal(t, "alice", res.WentOffline[0].Name)
	assert.Len(t, prev, 1, "previous set must not be mutated")
}

func TestApplyMissingIDIsUntouched(t *testing.T) {
	prev := LiveSet{"A": {Name: "alice", Title: "hello", RoomID: 1}}

	res := Apply(bili.Snapshot{"B": room("bob", "", 2, false)}, prev)

	assert.False(t, res.Changed)
	assert.Equal(t, prev, res.Updated)
}

func TestApplyStillLiveKeepsOriginalRecord(t *testing.T) {
	prev := LiveSet{"A": {Name: "alice", Title: "first title", RoomID: 1}}

	res := Apply(bili.Snapshot{"A": room("alice", "renamed", 1, true)}, prev)

	assert.False(t, res.Changed)
	assert.Equal(t, "first title", res.Updated["A"].Title)
}

func TestApplyIsIdempotent(t *testing.T) {
	snap := bili.Snapshot{
		"A": room("alice", "a", 1, true),
		"B": room("bob", "b", 2, true),
		"C": room("carol", "c", 3, false),
	}
	prev := LiveSet{"C": {Name: "carol", RoomID: 3}}

	first := Apply(snap, prev)
	require.True(t, first.Changed)

	second := Apply(snap, first.Updated)
	assert.False(t, second.Changed)
	assert.Empty(t, second.NewlyLive)
	assert.Empty(t, second.WentOffline)
	assert.Equal(t, first.Updated, second.Updated)
}

func TestApplyOrdersTransitionsByID(t *testing.T) {
	snap := bili.Snapshot{
		"30": room("c", "", 3, true),
		"10": room("a", "", 1, true),
		"20": room("b", "", 2, true),
	}

	res := Apply(snap, nil)

	ids := make([]string, 0, len(res.NewlyLive))
	for _, tr := range res.NewlyLive {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []string{"10", "20", "30"}, ids)
	assert.Equal(t, []string{"10", "20", "30"}, res.Updated.IDs())
}

func TestApplyEmptySnapshot(t *testing.T) {
	res := Apply(nil, LiveSet{"A": {Name: "alice"}})
	assert.False(t, res.Changed)
	assert.Len(t, res.Updated, 1)
}
