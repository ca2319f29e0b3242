package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlinkAPI/internal/directory"
	"chatlinkAPI/internal/types/friendship"
	"chatlinkAPI/internal/user"
)

func newTestFriendService() (*FriendService, *directory.MemoryStore) {
	store := directory.NewMemoryStore()
	return NewFriendService(store), store
}

func seedUser(t *testing.T, store *directory.MemoryStore, id, email, name string) *user.Record {
	t.Helper()
	rec := &user.Record{
		ID:          id,
		UID:         id,
		Email:       email,
		DisplayName: name,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, store.CreateUser(context.Background(), rec))
	return rec
}

// sendAndAccept establishes a friendship between the two seeded users.
func sendAndAccept(t *testing.T, svc *FriendService, sender, receiver *user.Record) *friendship.Request {
	t.Helper()
	ctx := context.Background()

	result, err := svc.SendFriendRequest(ctx, sender.ID, receiver.ID, sender.Snapshot(), receiver.Snapshot())
	require.NoError(t, err)
	require.NotNil(t, result.Request)
	require.Equal(t, friendship.RequestPending, result.Request.Status)

	accepted, err := svc.RespondToFriendRequest(ctx, receiver.ID, result.Request.ID, true)
	require.NoError(t, err)
	require.Equal(t, friendship.RequestAccepted, accepted.Request.Status)

	return accepted.Request
}

func TestLookupUserByEmail(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	seedUser(t, store, "u1", "ali@example.com", "Ali")

	t.Run("malformed email rejected before backend", func(t *testing.T) {
		for _, email := range []string{"", "plainaddress", "no domain@x.com", "a@b", "a@ b.com", " ali@example.com"} {
			_, err := svc.LookupUserByEmail(ctx, email)
			assert.ErrorIs(t, err, ErrInvalidEmail, "email %q", email)
		}
	})

	t.Run("exact match returns record and storage id", func(t *testing.T) {
		result, err := svc.LookupUserByEmail(ctx, "ali@example.com")
		require.NoError(t, err)
		assert.Equal(t, "u1", result.StorageID)
		assert.Equal(t, "Ali", result.Record.DisplayName)
	})

	t.Run("match is case-sensitive", func(t *testing.T) {
		_, err := svc.LookupUserByEmail(ctx, "Ali@example.com")
		assert.ErrorIs(t, err, directory.ErrNotFound)

		_, err = svc.LookupUserByEmail(ctx, "ali@EXAMPLE.com")
		assert.ErrorIs(t, err, directory.ErrNotFound)
	})

	t.Run("unknown email is NotFound", func(t *testing.T) {
		_, err := svc.LookupUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, directory.ErrNotFound)
	})
}

func TestSendFriendRequest(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")

	t.Run("self request rejected", func(t *testing.T) {
		_, err := svc.SendFriendRequest(ctx, ali.ID, ali.ID, ali.Snapshot(), ali.Snapshot())
		assert.ErrorIs(t, err, ErrSelfRequest)
	})

	t.Run("creates pending request with snapshots", func(t *testing.T) {
		result, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
		require.NoError(t, err)
		assert.Equal(t, "Friend request sent.", result.Message)
		assert.Equal(t, friendship.RequestPending, result.Request.Status)
		assert.Equal(t, "ali@example.com", result.Request.SenderEmail)
		assert.Equal(t, "Veli", result.Request.ReceiverName)
	})

	t.Run("duplicate while pending rejected", func(t *testing.T) {
		_, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
		assert.ErrorIs(t, err, ErrDuplicateRequest)
	})

	t.Run("reverse direction also counts as duplicate", func(t *testing.T) {
		_, err := svc.SendFriendRequest(ctx, veli.ID, ali.ID, veli.Snapshot(), ali.Snapshot())
		assert.ErrorIs(t, err, ErrDuplicateRequest)
	})

	t.Run("exactly one pending request exists", func(t *testing.T) {
		requests, err := svc.ListIncomingRequests(ctx, veli.ID)
		require.NoError(t, err)
		assert.Len(t, requests, 1)
	})
}

func TestSendFriendRequestAlreadyFriends(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")
	sendAndAccept(t, svc, ali, veli)

	_, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
	assert.ErrorIs(t, err, ErrAlreadyFriends)

	_, err = svc.SendFriendRequest(ctx, veli.ID, ali.ID, veli.Snapshot(), ali.Snapshot())
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestRespondToFriendRequestAccept(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")

	req := sendAndAccept(t, svc, ali, veli)

	t.Run("edge is mutual", func(t *testing.T) {
		aliFriends, err := svc.GetFriends(ctx, ali.ID)
		require.NoError(t, err)
		require.Len(t, aliFriends, 1)
		assert.Equal(t, veli.ID, aliFriends[0].ID)

		veliFriends, err := svc.GetFriends(ctx, veli.ID)
		require.NoError(t, err)
		require.Len(t, veliFriends, 1)
		assert.Equal(t, ali.ID, veliFriends[0].ID)
	})

	t.Run("replaying accept is a no-op with one edge", func(t *testing.T) {
		result, err := svc.RespondToFriendRequest(ctx, veli.ID, req.ID, true)
		require.NoError(t, err)
		assert.Contains(t, result.Message, "already accepted")

		entries, err := store.ListFriends(ctx, ali.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("declining an accepted request fails", func(t *testing.T) {
		_, err := svc.RespondToFriendRequest(ctx, veli.ID, req.ID, false)
		assert.ErrorIs(t, err, ErrRequestClosed)
	})

	t.Run("request no longer listed as pending", func(t *testing.T) {
		requests, err := svc.ListIncomingRequests(ctx, veli.ID)
		require.NoError(t, err)
		assert.Empty(t, requests)
	})
}

func TestRespondToFriendRequestDecline(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")

	sent, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
	require.NoError(t, err)

	result, err := svc.RespondToFriendRequest(ctx, veli.ID, sent.Request.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Friend request declined.", result.Message)
	assert.Equal(t, friendship.RequestDeclined, result.Request.Status)

	t.Run("no edge created", func(t *testing.T) {
		friends, err := svc.GetFriends(ctx, ali.ID)
		require.NoError(t, err)
		assert.Empty(t, friends)
	})

	t.Run("replaying decline is a no-op", func(t *testing.T) {
		result, err := svc.RespondToFriendRequest(ctx, veli.ID, sent.Request.ID, false)
		require.NoError(t, err)
		assert.Contains(t, result.Message, "already declined")
	})

	t.Run("accepting a declined request fails", func(t *testing.T) {
		_, err := svc.RespondToFriendRequest(ctx, veli.ID, sent.Request.ID, true)
		assert.ErrorIs(t, err, ErrRequestClosed)
	})

	t.Run("a fresh request can be sent after the decline", func(t *testing.T) {
		_, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
		require.NoError(t, err)
	})
}

func TestRespondToUnknownRequest(t *testing.T) {
	svc, store := newTestFriendService()
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")

	_, err := svc.RespondToFriendRequest(context.Background(), veli.ID, "missing", true)
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestAcceptCompensatesFailedSecondWrite(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")

	sent, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
	require.NoError(t, err)

	// Fail the receiver-side write; the sender-side write must be rolled back.
	store.PutFriendHook = func(userID string, _ friendship.Entry) error {
		if userID == veli.ID {
			return fmt.Errorf("%w: injected", directory.ErrUnavailable)
		}
		return nil
	}

	_, err = svc.RespondToFriendRequest(ctx, veli.ID, sent.Request.ID, true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPartialWrite)

	store.PutFriendHook = nil

	entries, err := store.ListFriends(ctx, ali.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "rolled-back write must not leave a one-sided edge")

	t.Run("request stays pending and the accept can be retried", func(t *testing.T) {
		result, err := svc.RespondToFriendRequest(ctx, veli.ID, sent.Request.ID, true)
		require.NoError(t, err)
		assert.Equal(t, friendship.RequestAccepted, result.Request.Status)
	})
}

func TestAcceptSurfacesPartialWrite(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")

	sent, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
	require.NoError(t, err)

	// Second write and its rollback both fail: durable one-sided edge.
	store.PutFriendHook = func(userID string, _ friendship.Entry) error {
		if userID == veli.ID {
			return fmt.Errorf("%w: injected", directory.ErrUnavailable)
		}
		return nil
	}
	store.DeleteFriendHook = func(userID, friendID string) error {
		return fmt.Errorf("%w: injected rollback failure", directory.ErrUnavailable)
	}

	_, err = svc.RespondToFriendRequest(ctx, veli.ID, sent.Request.ID, true)
	assert.ErrorIs(t, err, ErrPartialWrite)
}

func TestGetFriendsEmptyAndDangling(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")

	t.Run("empty list is a valid result", func(t *testing.T) {
		friends, err := svc.GetFriends(ctx, ali.ID)
		require.NoError(t, err)
		assert.Empty(t, friends)
	})

	t.Run("dangling entries are skipped", func(t *testing.T) {
		require.NoError(t, store.PutFriend(ctx, ali.ID, friendship.Entry{
			FriendID:    "ghost",
			Email:       "ghost@example.com",
			DisplayName: "Ghost",
			AddedAt:     time.Now(),
		}))

		friends, err := svc.GetFriends(ctx, ali.ID)
		require.NoError(t, err)
		assert.Empty(t, friends)
	})
}

func TestRemoveFriend(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")
	sendAndAccept(t, svc, ali, veli)

	t.Run("unconfirmed removal is a guaranteed no-op", func(t *testing.T) {
		store.DeleteFriendHook = func(userID, friendID string) error {
			t.Fatal("cancelled removal must not touch the backend")
			return nil
		}
		result, err := svc.RemoveFriend(ctx, ali.ID, ali.Email, veli.ID, veli.Email, false)
		store.DeleteFriendHook = nil
		require.NoError(t, err)
		assert.Equal(t, "Friend removal cancelled.", result.Message)

		friends, err := svc.GetFriends(ctx, ali.ID)
		require.NoError(t, err)
		assert.Len(t, friends, 1)
	})

	t.Run("confirmed removal strips both sides", func(t *testing.T) {
		result, err := svc.RemoveFriend(ctx, ali.ID, ali.Email, veli.ID, veli.Email, true)
		require.NoError(t, err)
		assert.Equal(t, "Friend removed.", result.Message)

		aliFriends, err := svc.GetFriends(ctx, ali.ID)
		require.NoError(t, err)
		assert.Empty(t, aliFriends)

		veliFriends, err := svc.GetFriends(ctx, veli.ID)
		require.NoError(t, err)
		assert.Empty(t, veliFriends)
	})

	t.Run("accepted request record is closed", func(t *testing.T) {
		_, err := store.FindRequest(ctx, veli.ID, ali.ID, friendship.RequestAccepted)
		assert.ErrorIs(t, err, directory.ErrNotFound)

		_, err = store.FindRequest(ctx, ali.ID, veli.ID, friendship.RequestAccepted)
		assert.ErrorIs(t, err, directory.ErrNotFound)
	})

	t.Run("the pair can become friends again", func(t *testing.T) {
		sendAndAccept(t, svc, veli, ali)
	})
}

func TestRemoveFriendCompensatesFailedSecondDelete(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")
	sendAndAccept(t, svc, ali, veli)

	store.DeleteFriendHook = func(userID, friendID string) error {
		if userID == veli.ID {
			return fmt.Errorf("%w: injected", directory.ErrUnavailable)
		}
		return nil
	}

	_, err := svc.RemoveFriend(ctx, ali.ID, ali.Email, veli.ID, veli.Email, true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPartialWrite)

	store.DeleteFriendHook = nil

	// The actor's entry was restored, so the edge is still intact on both sides.
	aliFriends, err := svc.GetFriends(ctx, ali.ID)
	require.NoError(t, err)
	assert.Len(t, aliFriends, 1)

	veliFriends, err := svc.GetFriends(ctx, veli.ID)
	require.NoError(t, err)
	assert.Len(t, veliFriends, 1)
}

func TestRemoveFriendSurfacesPartialWrite(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")
	sendAndAccept(t, svc, ali, veli)

	deletes := 0
	store.DeleteFriendHook = func(userID, friendID string) error {
		deletes++
		if deletes > 1 {
			return fmt.Errorf("%w: injected", directory.ErrUnavailable)
		}
		return nil
	}
	store.PutFriendHook = func(userID string, _ friendship.Entry) error {
		return fmt.Errorf("%w: injected restore failure", directory.ErrUnavailable)
	}

	_, err := svc.RemoveFriend(ctx, ali.ID, ali.Email, veli.ID, veli.Email, true)
	assert.ErrorIs(t, err, ErrPartialWrite)
}

// TestFriendLifecycleEndToEnd walks the full scenario: request, accept,
// mutual lists, removal, empty lists.
func TestFriendLifecycleEndToEnd(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	a := seedUser(t, store, "ua", "a@x.com", "A")
	b := seedUser(t, store, "ub", "b@x.com", "B")

	t.Log("Step 1: A sends a request to B")
	sent, err := svc.SendFriendRequest(ctx, a.ID, b.ID, a.Snapshot(), b.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestPending, sent.Request.Status)

	t.Log("Step 2: B accepts")
	accepted, err := svc.RespondToFriendRequest(ctx, b.ID, sent.Request.ID, true)
	require.NoError(t, err)
	assert.Equal(t, friendship.RequestAccepted, accepted.Request.Status)

	aFriends, err := svc.GetFriends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, aFriends, 1)
	assert.Equal(t, "b@x.com", aFriends[0].Email)

	bFriends, err := svc.GetFriends(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, bFriends, 1)
	assert.Equal(t, "a@x.com", bFriends[0].Email)

	t.Log("Step 3: A removes B with confirmation")
	_, err = svc.RemoveFriend(ctx, a.ID, a.Email, b.ID, b.Email, true)
	require.NoError(t, err)

	aFriends, err = svc.GetFriends(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, aFriends)

	bFriends, err = svc.GetFriends(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, bFriends)
}

func TestPushFailureDoesNotFailOperation(t *testing.T) {
	svc, store := newTestFriendService()
	ctx := context.Background()
	ali := seedUser(t, store, "u1", "ali@example.com", "Ali")
	veli := seedUser(t, store, "u2", "veli@example.com", "Veli")

	svc.SetPushProvider(pushFunc(func(context.Context, []string, string, string, map[string]string) error {
		return errors.New("fcm down")
	}))

	_, err := svc.SendFriendRequest(ctx, ali.ID, veli.ID, ali.Snapshot(), veli.Snapshot())
	require.NoError(t, err)
}

type pushFunc func(ctx context.Context, tokens []string, title, body string, data map[string]string) error

func (f pushFunc) SendPush(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	return f(ctx, tokens, title, body, data)
}
