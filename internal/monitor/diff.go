// Package monitor turns a status snapshot into live/offline transitions
// against the previously persisted live set.
package monitor

import (
	"maps"
	"slices"

	"github.com/lovetingyuan/bili-live/internal/bili"
)

// LiveUp is the persisted record of a streamer that was live at the last
// successful check.
type LiveUp struct {
	Name   string `json:"uname"`
	Title  string `json:"title"`
	RoomID int64  `json:"roomId"`
}

// LiveSet maps user ID to the streamer's live record.
type LiveSet map[string]LiveUp

// Transition is one streamer changing state during a cycle.
type Transition struct {
	ID string
	LiveUp
}

// Result is the outcome of applying a snapshot.
type Result struct {
	Updated     LiveSet
	NewlyLive   []Transition
	WentOffline []Transition
	Changed     bool
}

// Apply compares snapshot with previous and returns the new live set.
//
// IDs missing from the snapshot keep whatever state previous had for them.
// previous is never modified. Entries are visited in ascending ID order so
// NewlyLive and WentOffline are deterministic.
func Apply(snapshot bili.Snapshot, previous LiveSet) Result {
	res := Result{Updated: make(LiveSet, len(previous))}
	maps.Copy(res.Updated, previous)

	for _, id := range slices.Sorted(maps.Keys(snapshot)) {
		room := snapshot[id]
		prev, wasLive := res.Updated[id]

		switch {
		case room.IsLive() && !wasLive:
			up := LiveUp{Name: room.Uname, Title: room.Title, RoomID: room.RoomID}
			res.Updated[id] = up
			res.NewlyLive = append(res.NewlyLive, Transition{ID: id, LiveUp: up})
			res.Changed = true

		case !room.IsLive() && wasLive:
			delete(res.Updated, id)
			res.WentOffline = append(res.WentOffline, Transition{ID: id, LiveUp: prev})
			res.Changed = true
		}
	}
	return res
}

// IDs returns the set's user IDs in ascending order.
func (s LiveSet) IDs() []string {
	return slices.Sorted(maps.Keys(s))
}
