// Package bili fetches live-room status for a batch of bilibili user IDs.
//
// The status endpoint is reached through a public proxy relay, retried with
// exponential backoff, and every body is validated against a JSON schema
// generated from the types in this file before it is decoded.
package bili

// Room is one entry of the status response, keyed by user ID.
type Room struct {
	Title      string `json:"title"`
	RoomID     int64  `json:"room_id"`
	UID        int64  `json:"uid"`
	Online     int    `json:"online" jsonschema:"enum=0,enum=1"`
	LiveTime   int64  `json:"live_time"`
	LiveStatus int    `json:"live_status" jsonschema:"enum=0,enum=1"`
	AreaName   string `json:"area_name"`
	Uname      string `json:"uname"`
	Face       string `json:"face"`
}

// IsLive reports whether the room is currently broadcasting.
func (r Room) IsLive() bool {
	return r.LiveStatus == 1
}

// Snapshot is a validated status response: user ID -> room.
type Snapshot map[string]Room

// statusResponse is the envelope returned by get_status_info_by_uids.
type statusResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    map[string]Room `json:"data"`
}
