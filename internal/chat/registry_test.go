package chat

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegistrySubscribeIdempotent(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.AddRoom("General")

	sink := &recordingSink{}
	reg.Subscribe("General", sink)
	reg.Subscribe("General", sink)

	reg.Broadcast("General", "MESSAGE:[General] alice: hi")
	require.Len(t, sink.Lines(), 1, "double subscribe must not double deliveries")
}

func TestRegistryUnsubscribeAbsentIsNoop(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.AddRoom("General")

	sink := &recordingSink{}
	reg.Unsubscribe("General", sink)
	require.False(t, reg.Contains("General", sink))
}

func TestRegistryExists(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	require.False(t, reg.Exists("General"))
	reg.AddRoom("General")
	require.True(t, reg.Exists("General"))

	// AddRoom is idempotent and keeps existing waiters.
	sink := &recordingSink{}
	reg.Subscribe("General", sink)
	reg.AddRoom("General")
	require.True(t, reg.Contains("General", sink))
}

func TestRegistryBroadcastScopedToRoom(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.AddRoom("General")
	reg.AddRoom("Other")

	inRoom := &recordingSink{}
	outside := &recordingSink{}
	reg.Subscribe("General", inRoom)
	reg.Subscribe("Other", outside)

	reg.Broadcast("General", "MESSAGE:[General] alice: hi")

	require.Len(t, inRoom.Lines(), 1)
	require.Empty(t, outside.Lines())
}

func TestRegistryBroadcastSurvivesFailingWaiter(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.AddRoom("General")

	broken := &recordingSink{}
	broken.setFail(true)
	healthy := &recordingSink{}
	reg.Subscribe("General", broken)
	reg.Subscribe("General", healthy)

	reg.Broadcast("General", "MESSAGE:[General] alice: hi")

	require.Len(t, healthy.Lines(), 1, "failing recipient must not abort delivery to the rest")
}

func TestRegistryUnsubscribeStopsDelivery(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.AddRoom("General")

	sink := &recordingSink{}
	reg.Subscribe("General", sink)
	reg.Unsubscribe("General", sink)

	reg.Broadcast("General", "MESSAGE:[General] alice: hi")
	require.Empty(t, sink.Lines())
}
