package chat

import (
	"fmt"
	"strings"
)

// CommandPrefix marks an inbound payload as a command line.
const CommandPrefix = "#"

// CommandKind enumerates the closed set of protocol commands.
type CommandKind int

const (
	// CommandLogin authenticates the session.
	CommandLogin CommandKind = iota
	// CommandLogout drops the session back to anonymous.
	CommandLogout
	// CommandRegister creates a new user and authenticates as it.
	CommandRegister
	// CommandJoin subscribes the session to a room.
	CommandJoin
	// CommandLeave unsubscribes the session from a room.
	CommandLeave
	// CommandNick sets the nickname for one room, or all occupied rooms
	// when AllRooms is set.
	CommandNick
)

// Command is a parsed command line with validated arguments.
type Command struct {
	Kind     CommandKind
	User     string
	Password string
	Room     string
	Nick     string
	AllRooms bool
}

// UnknownCommandError reports a command token outside the fixed registry.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// UsageError reports malformed arguments for a recognized command.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	return "wrong usage: " + e.Usage
}

const (
	usageLogin    = "#login <user> <password>"
	usageRegister = "#register <user> <password>"
	usageJoin     = "#join room <name>"
	usageLeave    = "#left room <name>"
	usageNick     = "#change nick <room>|* <nick>"
)

// IsCommand reports whether an inbound payload is a command line rather
// than chat text.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, CommandPrefix)
}

// ParseCommand tokenizes a command line into a Command. The command token
// is matched case-insensitively; room-name resolution against known rooms
// is left to the dispatcher.
func ParseCommand(line string) (Command, error) {
	body := strings.TrimPrefix(line, CommandPrefix)
	name, rest := splitToken(body)

	switch strings.ToLower(name) {
	case "login":
		user, pass, err := credentials(rest, usageLogin)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandLogin, User: user, Password: pass}, nil
	case "logout":
		return Command{Kind: CommandLogout}, nil
	case "register":
		user, pass, err := credentials(rest, usageRegister)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandRegister, User: user, Password: pass}, nil
	case "join":
		room, err := roomArgument(rest, usageJoin)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandJoin, Room: room}, nil
	case "left":
		room, err := roomArgument(rest, usageLeave)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandLeave, Room: room}, nil
	case "change":
		return parseNick(rest)
	default:
		return Command{}, &UnknownCommandError{Name: name}
	}
}

// credentials parses exactly two whitespace-separated tokens.
func credentials(rest, usage string) (string, string, error) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return "", "", &UsageError{Usage: usage}
	}
	return fields[0], fields[1], nil
}

// roomArgument requires the literal "room" sub-keyword; the remainder of
// the line is the room name, so names may contain spaces unquoted.
func roomArgument(rest, usage string) (string, error) {
	keyword, name := splitToken(rest)
	if !strings.EqualFold(keyword, "room") {
		return "", &UsageError{Usage: usage}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &UsageError{Usage: usage}
	}
	return name, nil
}

// parseNick handles `change nick <room> <nick>`. Room and nickname may be
// quoted with matching '/" delimiters to allow embedded spaces; `*` targets
// every room the session occupies.
func parseNick(rest string) (Command, error) {
	keyword, args := splitToken(rest)
	if !strings.EqualFold(keyword, "nick") {
		return Command{}, &UsageError{Usage: usageNick}
	}
	tokens, err := splitQuoted(args)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		return Command{}, &UsageError{Usage: usageNick}
	}
	cmd := Command{Kind: CommandNick, Room: tokens[0], Nick: tokens[1]}
	if cmd.Room == "*" {
		cmd.AllRooms = true
		cmd.Room = ""
	}
	return cmd, nil
}

// splitToken cuts the first whitespace-separated token off s.
func splitToken(s string) (token, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// splitQuoted tokenizes s on whitespace, treating '...' and "..." runs as
// single tokens. An unterminated quote is a usage error.
func splitQuoted(s string) ([]string, error) {
	var tokens []string
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		if s[i] == '\'' || s[i] == '"' {
			quote := s[i]
			i++
			end := strings.IndexByte(s[i:], quote)
			if end < 0 {
				return nil, &UsageError{Usage: usageNick}
			}
			tokens = append(tokens, s[i:i+end])
			i += end + 1
			continue
		}
		start := i
		for i < len(s) && s[i] != ' ' && s[i] != '\t' {
			i++
		}
		tokens = append(tokens, s[start:i])
	}
	return tokens, nil
}
