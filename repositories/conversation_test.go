package repositories

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"you-chat/errors"
)

func Test_FindOrCreate_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	// When resolving the same pair twice
	first, created, err := repository.FindOrCreate("u1", "u2")
	req.NoError(err)
	req.True(created)

	second, created, err := repository.FindOrCreate("u1", "u2")
	req.NoError(err)
	req.False(created)

	// Then exactly one conversation exists
	req.Equal(first.ID, second.ID)
}

func Test_FindOrCreate_Is_Order_Independent(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	ab, _, err := repository.FindOrCreate("u1", "u2")
	req.NoError(err)

	// When resolving the reversed pair
	ba, created, err := repository.FindOrCreate("u2", "u1")
	req.NoError(err)

	// Then the member set addresses the same conversation
	req.False(created)
	req.Equal(ab.ID, ba.ID)
}

func Test_FindOrCreate_Concurrent_First_Messages(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	// When many goroutines race the first resolve for the same pair
	const goroutines = 16
	ids := make([]string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, _, err := repository.FindOrCreate("u1", "u2")
			require.NoError(t, err)
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	// Then every caller observed the same conversation
	for _, id := range ids {
		req.Equal(ids[0], id)
	}

	convs, err := repository.ListByMember("u1")
	req.NoError(err)
	req.Len(convs, 1)
}

func Test_ListByMember(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	_, _, err := repository.FindOrCreate("u1", "u2")
	req.NoError(err)
	_, _, err = repository.FindOrCreate("u1", "u3")
	req.NoError(err)
	_, _, err = repository.FindOrCreate("u2", "u3")
	req.NoError(err)

	convs, err := repository.ListByMember("u1")
	req.NoError(err)
	req.Len(convs, 2)
	for _, conv := range convs {
		req.True(conv.HasMember("u1"))
	}
}

func Test_FindByMembers_Missing_Pair(t *testing.T) {
	req := require.New(t)
	repository := NewConversationRepository(openTestDB(t))

	_, err := repository.FindByMembers("u1", "u2")
	req.ErrorIs(err, errors.ErrConversationNotFound)
}
