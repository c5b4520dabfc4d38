package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommandLogin(t *testing.T) {
	cmd, err := ParseCommand("#login alice secret")
	require.NoError(t, err)
	require.Equal(t, CommandLogin, cmd.Kind)
	require.Equal(t, "alice", cmd.User)
	require.Equal(t, "secret", cmd.Password)
}

func TestParseCommandCaseInsensitiveToken(t *testing.T) {
	for _, line := range []string{"#LOGIN alice secret", "#Login alice secret", "#lOgIn alice secret"} {
		cmd, err := ParseCommand(line)
		require.NoError(t, err, line)
		require.Equal(t, CommandLogin, cmd.Kind, line)
	}
}

func TestParseCommandCredentialsUsage(t *testing.T) {
	for _, line := range []string{"#login", "#login alice", "#login   ", "#register onlyuser", "#login a b c"} {
		_, err := ParseCommand(line)
		var usage *UsageError
		require.ErrorAs(t, err, &usage, line)
	}
}

func TestParseCommandJoin(t *testing.T) {
	cmd, err := ParseCommand("#join room Free Chat")
	require.NoError(t, err)
	require.Equal(t, CommandJoin, cmd.Kind)
	require.Equal(t, "Free Chat", cmd.Room)

	// The sub-keyword matches case-insensitively like the command token.
	cmd, err = ParseCommand("#join ROOM General")
	require.NoError(t, err)
	require.Equal(t, "General", cmd.Room)
}

func TestParseCommandJoinUsage(t *testing.T) {
	for _, line := range []string{"#join", "#join General", "#join room", "#join room   "} {
		_, err := ParseCommand(line)
		var usage *UsageError
		require.ErrorAs(t, err, &usage, line)
	}
}

func TestParseCommandLeave(t *testing.T) {
	cmd, err := ParseCommand("#left room Free Chat")
	require.NoError(t, err)
	require.Equal(t, CommandLeave, cmd.Kind)
	require.Equal(t, "Free Chat", cmd.Room)
}

func TestParseCommandLogout(t *testing.T) {
	cmd, err := ParseCommand("#logout")
	require.NoError(t, err)
	require.Equal(t, CommandLogout, cmd.Kind)
}

func TestParseCommandNick(t *testing.T) {
	tests := []struct {
		line     string
		room     string
		nick     string
		allRooms bool
	}{
		{line: "#change nick General Bob", room: "General", nick: "Bob"},
		{line: `#change nick "Free Chat" Bob`, room: "Free Chat", nick: "Bob"},
		{line: `#change nick 'Free Chat' Bob`, room: "Free Chat", nick: "Bob"},
		{line: `#change nick "Free Chat" "Bob the Builder"`, room: "Free Chat", nick: "Bob the Builder"},
		{line: `#change nick 'Free Chat' 'Bob'`, room: "Free Chat", nick: "Bob"},
		{line: "#change nick * Bob", nick: "Bob", allRooms: true},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.line)
		require.NoError(t, err, tt.line)
		require.Equal(t, CommandNick, cmd.Kind, tt.line)
		require.Equal(t, tt.room, cmd.Room, tt.line)
		require.Equal(t, tt.nick, cmd.Nick, tt.line)
		require.Equal(t, tt.allRooms, cmd.AllRooms, tt.line)
	}
}

func TestParseCommandNickUsage(t *testing.T) {
	lines := []string{
		"#change",
		"#change nick",
		"#change nick General",
		"#change nickname General Bob",
		`#change nick "Free Chat`,
		`#change nick 'Free Chat" Bob`,
		`#change nick "Free Chat" Bob extra`,
	}
	for _, line := range lines {
		_, err := ParseCommand(line)
		var usage *UsageError
		require.ErrorAs(t, err, &usage, line)
	}
}

func TestParseCommandUnknown(t *testing.T) {
	_, err := ParseCommand("#frobnicate now")
	var unknown *UnknownCommandError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "frobnicate", unknown.Name)
}

func TestIsCommand(t *testing.T) {
	require.True(t, IsCommand("#login a b"))
	require.True(t, IsCommand("#"))
	require.False(t, IsCommand("hello"))
	require.False(t, IsCommand(" #login a b"))
}
