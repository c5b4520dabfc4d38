package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/roomline/roomline-server/internal/store/memory"
)

// recordingSink captures delivered wire lines for assertions. Setting fail
// makes every Send return an error, emulating a broken connection.
type recordingSink struct {
	mu    sync.Mutex
	lines []string
	fail  bool
}

func (s *recordingSink) Send(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink closed")
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *recordingSink) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

func (s *recordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

func (s *recordingSink) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

const (
	testDefaultRoom = "Free Chat"
	testExtraRoom   = "General"
)

// newTestService builds an engine over a memory store seeded with the
// default room and one extra room.
func newTestService(t *testing.T, policy Policy) (*Service, *memory.Store) {
	t.Helper()

	st := memory.New(testDefaultRoom, testExtraRoom)
	registry := NewRegistry(zerolog.Nop())
	svc := NewService(st, registry, policy, zerolog.Nop())
	require.NoError(t, svc.Bootstrap(context.Background()))
	return svc, st
}

// openSession creates a session with a fresh recording sink and runs OnOpen.
func openSession(t *testing.T, svc *Service, identity string) (*Session, *recordingSink) {
	t.Helper()

	sink := &recordingSink{}
	sess := svc.NewSession(sink)
	sess.OnOpen(context.Background(), identity)
	return sess, sink
}

// serverLines filters the sink's captured lines down to feedback messages.
func serverLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "SERVER:") {
			out = append(out, line)
		}
	}
	return out
}

// messageLines filters the sink's captured lines down to room traffic.
func messageLines(lines []string) []string {
	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "MESSAGE:") {
			out = append(out, line)
		}
	}
	return out
}
