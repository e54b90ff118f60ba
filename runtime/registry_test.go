package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"you-chat/domain"
	"you-chat/domain/event"
)

type Sink struct{}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Register_First_Connection_Wins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := uuid.NewString()
	sink := Sink{}

	// Given no user is connected
	req.Empty(registry.Snapshot())

	// When a user identifies twice through different connections
	req.True(registry.Register(userID, "c1", sink))
	req.False(registry.Register(userID, "c2", sink))

	// Then only the first connection is tracked
	entries := registry.Snapshot()
	req.Len(entries, 1)
	req.Equal(domain.PresenceEntry{UserID: userID, ConnID: "c1"}, entries[0])
}

func TestRegistry_Snapshot_Preserves_Registration_Order(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := Sink{}

	registry.Register("u1", "c1", sink)
	registry.Register("u2", "c2", sink)
	registry.Register("u3", "c3", sink)

	entries := registry.Snapshot()
	req.Equal([]domain.PresenceEntry{
		{UserID: "u1", ConnID: "c1"},
		{UserID: "u2", ConnID: "c2"},
		{UserID: "u3", ConnID: "c3"},
	}, entries)
	req.Len(registry.Sinks(), 3)
}

func TestRegistry_Unregister_By_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := Sink{}

	registry.Register("u1", "c1", sink)
	registry.Register("u2", "c2", sink)

	// When a connection closes
	req.True(registry.Unregister("c1"))

	// Then only the other user remains online
	_, ok := registry.Lookup("u1")
	req.False(ok)
	_, ok = registry.Lookup("u2")
	req.True(ok)

	entries := registry.Snapshot()
	req.Equal([]domain.PresenceEntry{{UserID: "u2", ConnID: "c2"}}, entries)

	// Unregistering an unknown connection is a no-op
	req.False(registry.Unregister("c1"))
}

func TestRegistry_Never_Holds_Two_Entries_Per_User(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink := Sink{}
	userID := uuid.NewString()

	// For all register/unregister sequences, at most one entry per user
	registry.Register(userID, "c1", sink)
	registry.Register(userID, "c2", sink)
	registry.Unregister("c1")
	registry.Register(userID, "c3", sink)
	registry.Register(userID, "c4", sink)

	entries := registry.Snapshot()
	req.Len(entries, 1)
	req.Equal("c3", entries[0].ConnID)
}
