package notifications

import (
	"fmt"
	"strings"

	"github.com/lovetingyuan/bili-live/internal/monitor"
)

const (
	untitled       = "点击查看"
	recordReminder = "**🌼记得开直播录制**"
	roomURLFormat  = "https://live.bilibili.com/h5/%d"
)

// Digest renders the whole live set as a title and markdown body, one line
// per streamer in ascending ID order.
func Digest(live monitor.LiveSet) (title, body string) {
	title = fmt.Sprintf("有%d位UP正在直播", len(live))

	lines := make([]string, 0, len(live)+2)
	for _, id := range live.IDs() {
		up := live[id]
		t := up.Title
		if t == "" {
			t = untitled
		}
		lines = append(lines, fmt.Sprintf("- **%s** 正在直播：[%s](%s)", up.Name, t, fmt.Sprintf(roomURLFormat, up.RoomID)))
	}
	lines = append(lines, "", recordReminder)

	return title, strings.Join(lines, "\n")
}
