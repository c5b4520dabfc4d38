package chat

import (
	"html"

	"github.com/roomline/roomline-server/internal/store"
)

// AnonymousName labels traffic from sessions without an identity.
const AnonymousName = "Anonymous"

const (
	serverTag  = "SERVER:"
	messageTag = "MESSAGE:"
)

// ServerLine formats a feedback line addressed to a single session. The text
// template itself is trusted; any user-supplied value interpolated into it
// must go through quoted or escape.
func ServerLine(text string) string {
	return serverTag + text
}

// RoomLine formats attributed room traffic. All three parts are escaped so
// markup in names or chat text cannot survive to a rendering UI.
func RoomLine(room, nick, text string) string {
	return messageTag + "[" + escape(room) + "] " + escape(nick) + ": " + escape(text)
}

func roomLineFromMessage(m store.Message) string {
	return RoomLine(m.Room, m.Nick, m.Text)
}

// escape neutralizes HTML markup before transmission.
func escape(s string) string {
	return html.EscapeString(s)
}

// quoted wraps an escaped user-supplied value in double quotes for feedback
// messages.
func quoted(s string) string {
	return `"` + escape(s) + `"`
}
