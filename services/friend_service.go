package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"

	"chatlinkAPI/internal/directory"
	"chatlinkAPI/internal/notification"
	"chatlinkAPI/internal/types/friendship"
	"chatlinkAPI/internal/user"
	"chatlinkAPI/middleware"
)

// Same pattern the mobile client validates with before it ever calls the
// backend: local part, @, domain with at least one dot, no whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Result is the outcome payload handed back to the presentation layer. The
// message is the only UI text this layer produces.
type Result struct {
	Message string              `json:"message"`
	Request *friendship.Request `json:"request,omitempty"`
}

// FriendService is the relationship manager: it owns the friend-request
// state machine (pending -> accepted | declined, both terminal) and the
// mutual friend edge on top of the directory store.
type FriendService struct {
	store  directory.Store
	pusher notification.Pusher
}

func NewFriendService(store directory.Store) *FriendService {
	return &FriendService{store: store}
}

// SetPushProvider wires optional push delivery. Pushes are best-effort and
// never fail a relationship operation.
func (s *FriendService) SetPushProvider(p notification.Pusher) {
	s.pusher = p
}

// LookupUserByEmail resolves an exact, case-sensitive email match to a user
// record plus its storage identifier. Malformed addresses are rejected
// before any backend call.
func (s *FriendService) LookupUserByEmail(ctx context.Context, email string) (*user.LookupResponse, error) {
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	rec, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &user.LookupResponse{Record: rec, StorageID: rec.ID}, nil
}

// SendFriendRequest creates a pending request from sender to receiver.
// Preconditions enforced here: no self-requests, the pair are not already
// friends, and no pending request exists in either direction.
func (s *FriendService) SendFriendRequest(ctx context.Context, senderID, receiverID string, senderSnap, receiverSnap user.Snapshot) (*Result, error) {
	if senderID == receiverID {
		middleware.CountFriendOp("send", "rejected")
		return nil, ErrSelfRequest
	}

	if _, err := s.store.GetFriend(ctx, senderID, receiverID); err == nil {
		middleware.CountFriendOp("send", "rejected")
		return nil, ErrAlreadyFriends
	} else if !errors.Is(err, directory.ErrNotFound) {
		middleware.CountFriendOp("send", "error")
		return nil, fmt.Errorf("checking friendship: %w", err)
	}

	// Check both directions of the unordered pair.
	if _, err := s.store.FindRequest(ctx, receiverID, senderID, friendship.RequestPending); err == nil {
		middleware.CountFriendOp("send", "rejected")
		return nil, ErrDuplicateRequest
	} else if !errors.Is(err, directory.ErrNotFound) {
		middleware.CountFriendOp("send", "error")
		return nil, fmt.Errorf("checking outgoing request: %w", err)
	}
	if _, err := s.store.FindRequest(ctx, senderID, receiverID, friendship.RequestPending); err == nil {
		middleware.CountFriendOp("send", "rejected")
		return nil, ErrDuplicateRequest
	} else if !errors.Is(err, directory.ErrNotFound) {
		middleware.CountFriendOp("send", "error")
		return nil, fmt.Errorf("checking incoming request: %w", err)
	}

	req := &friendship.Request{
		ID:            uuid.NewString(),
		SenderID:      senderID,
		ReceiverID:    receiverID,
		SenderEmail:   senderSnap.Email,
		SenderName:    senderSnap.DisplayName,
		SenderImage:   senderSnap.ProfileImage,
		ReceiverEmail: receiverSnap.Email,
		ReceiverName:  receiverSnap.DisplayName,
		ReceiverImage: receiverSnap.ProfileImage,
		Status:        friendship.RequestPending,
		CreatedAt:     time.Now(),
	}

	if err := s.store.CreateRequest(ctx, req); err != nil {
		middleware.CountFriendOp("send", "error")
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	middleware.CountFriendOp("send", "ok")
	s.push(ctx, receiverID, "New friend request", fmt.Sprintf("%s wants to be your friend", req.SenderName),
		map[string]string{"type": "friend_request", "requestId": req.ID})

	return &Result{Message: "Friend request sent.", Request: req}, nil
}

// RespondToFriendRequest closes a pending request. Accepting writes both
// sides of the friend edge before marking the request accepted, so a crash
// mid-way leaves the request retryable. Replaying the same terminal
// transition is a no-op; the opposite transition on a closed request fails.
func (s *FriendService) RespondToFriendRequest(ctx context.Context, receiverID, requestID string, accept bool) (*Result, error) {
	req, err := s.store.GetRequest(ctx, receiverID, requestID)
	if err != nil {
		middleware.CountFriendOp("respond", "error")
		return nil, err
	}

	if req.Status.Terminal() {
		if (req.Status == friendship.RequestAccepted && accept) ||
			(req.Status == friendship.RequestDeclined && !accept) {
			middleware.CountFriendOp("respond", "replay")
			return &Result{Message: fmt.Sprintf("Friend request already %s.", req.Status), Request: req}, nil
		}
		middleware.CountFriendOp("respond", "rejected")
		return nil, ErrRequestClosed
	}

	now := time.Now()

	if !accept {
		if err := s.store.SetRequestStatus(ctx, receiverID, requestID, friendship.RequestDeclined, now); err != nil {
			middleware.CountFriendOp("respond", "error")
			return nil, fmt.Errorf("declining request: %w", err)
		}
		req.Status = friendship.RequestDeclined
		req.RespondedAt = &now
		middleware.CountFriendOp("respond", "ok")
		return &Result{Message: "Friend request declined.", Request: req}, nil
	}

	senderEntry := friendship.Entry{
		FriendID:     req.ReceiverID,
		Email:        req.ReceiverEmail,
		DisplayName:  req.ReceiverName,
		ProfileImage: req.ReceiverImage,
		AddedAt:      now,
	}
	receiverEntry := friendship.Entry{
		FriendID:     req.SenderID,
		Email:        req.SenderEmail,
		DisplayName:  req.SenderName,
		ProfileImage: req.SenderImage,
		AddedAt:      now,
	}

	if err := s.writeEdge(ctx, req.SenderID, senderEntry, req.ReceiverID, receiverEntry); err != nil {
		middleware.CountFriendOp("respond", "error")
		return nil, err
	}

	if err := s.store.SetRequestStatus(ctx, receiverID, requestID, friendship.RequestAccepted, now); err != nil {
		// The edge exists but the request is still pending; replaying the
		// accept overwrites the same entries and retries this write.
		middleware.CountFriendOp("respond", "error")
		return nil, fmt.Errorf("accepting request: %w", err)
	}
	req.Status = friendship.RequestAccepted
	req.RespondedAt = &now

	middleware.CountFriendOp("respond", "ok")
	s.push(ctx, req.SenderID, "Friend request accepted", fmt.Sprintf("%s accepted your friend request", req.ReceiverName),
		map[string]string{"type": "friend_accept", "requestId": req.ID})

	return &Result{Message: "Friend request accepted.", Request: req}, nil
}

// writeEdge writes both sides of a mutual edge with compensation: if the
// second write fails, the first is rolled back; if the rollback also fails,
// the one-sided edge is surfaced as ErrPartialWrite for the reconciler.
func (s *FriendService) writeEdge(ctx context.Context, firstID string, firstEntry friendship.Entry, secondID string, secondEntry friendship.Entry) error {
	if err := s.store.PutFriend(ctx, firstID, firstEntry); err != nil {
		return fmt.Errorf("writing friend entry for %s: %w", firstID, err)
	}

	if err := s.store.PutFriend(ctx, secondID, secondEntry); err != nil {
		if rbErr := s.store.DeleteFriend(ctx, firstID, firstEntry.FriendID); rbErr != nil {
			log.Printf("PARTIAL WRITE: friend edge %s<->%s one-sided, write failed (%v) and rollback failed (%v)", firstID, secondID, err, rbErr)
			middleware.CountPartialWrite()
			return fmt.Errorf("%w: %s -> %s", ErrPartialWrite, firstID, secondID)
		}
		return fmt.Errorf("writing friend entry for %s: %w", secondID, err)
	}
	return nil
}

// GetFriends resolves the actor's friend entries to current profile
// snapshots. Dangling references are skipped; the reconciler cleans them up.
// An empty list is a valid, non-error result.
func (s *FriendService) GetFriends(ctx context.Context, actorID string) ([]user.Record, error) {
	entries, err := s.store.ListFriends(ctx, actorID)
	if err != nil {
		middleware.CountFriendOp("list", "error")
		return nil, fmt.Errorf("listing friends: %w", err)
	}

	friends := make([]user.Record, 0, len(entries))
	for _, e := range entries {
		rec, err := s.store.GetUser(ctx, e.FriendID)
		if errors.Is(err, directory.ErrNotFound) {
			log.Printf("GetFriends: dangling friend entry %s -> %s", actorID, e.FriendID)
			middleware.CountFriendOp("list", "dangling")
			continue
		}
		if err != nil {
			middleware.CountFriendOp("list", "error")
			return nil, fmt.Errorf("resolving friend %s: %w", e.FriendID, err)
		}
		friends = append(friends, *rec)
	}

	middleware.CountFriendOp("list", "ok")
	return friends, nil
}

// ListIncomingRequests returns the receiver's pending requests, newest first.
func (s *FriendService) ListIncomingRequests(ctx context.Context, receiverID string) ([]friendship.Request, error) {
	return s.store.ListRequests(ctx, receiverID)
}

// RemoveFriend strips the mutual edge from both sides. confirmed carries the
// confirm/cancel decision made upstream; false is a guaranteed no-op with no
// backend writes. The accepted request record is deleted before the entries:
// once it is gone, a removal interrupted by ErrPartialWrite leaves a
// one-sided edge with no accepted request behind it, which the reconciler
// finishes by removing the orphan rather than rebuilding the friendship.
// The actor's side is removed first and restored if the friend's side cannot
// be removed.
func (s *FriendService) RemoveFriend(ctx context.Context, actorID, actorEmail, friendID, friendEmail string, confirmed bool) (*Result, error) {
	if !confirmed {
		middleware.CountFriendOp("remove", "cancelled")
		return &Result{Message: "Friend removal cancelled."}, nil
	}

	saved, err := s.store.GetFriend(ctx, actorID, friendID)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		middleware.CountFriendOp("remove", "error")
		return nil, fmt.Errorf("reading friend entry: %w", err)
	}

	req, err := acceptedRequestBetween(ctx, s.store, actorID, friendID)
	if err != nil {
		middleware.CountFriendOp("remove", "error")
		return nil, err
	}
	if req != nil {
		if err := s.store.DeleteRequest(ctx, req.ReceiverID, req.ID); err != nil {
			middleware.CountFriendOp("remove", "error")
			return nil, fmt.Errorf("closing accepted request %s: %w", req.ID, err)
		}
	}

	if err := s.store.DeleteFriend(ctx, actorID, friendID); err != nil {
		middleware.CountFriendOp("remove", "error")
		return nil, fmt.Errorf("removing %s from %s: %w", friendEmail, actorEmail, err)
	}

	if err := s.store.DeleteFriend(ctx, friendID, actorID); err != nil {
		if saved != nil {
			if rbErr := s.store.PutFriend(ctx, actorID, *saved); rbErr != nil {
				log.Printf("PARTIAL WRITE: friend edge %s<->%s half-removed, delete failed (%v) and restore failed (%v)", actorID, friendID, err, rbErr)
				middleware.CountPartialWrite()
				middleware.CountFriendOp("remove", "partial")
				return nil, fmt.Errorf("%w: %s -> %s", ErrPartialWrite, actorID, friendID)
			}
		}
		middleware.CountFriendOp("remove", "error")
		return nil, fmt.Errorf("removing %s from %s: %w", actorEmail, friendEmail, err)
	}

	middleware.CountFriendOp("remove", "ok")
	return &Result{Message: "Friend removed."}, nil
}

// push looks up the target's device tokens and fires a best-effort FCM push.
func (s *FriendService) push(ctx context.Context, userID, title, body string, data map[string]string) {
	if s.pusher == nil {
		return
	}
	rec, err := s.store.GetUser(ctx, userID)
	if err != nil {
		log.Printf("push: could not load %s: %v", userID, err)
		return
	}
	if err := s.pusher.SendPush(ctx, rec.DeviceTokens, title, body, data); err != nil {
		log.Printf("push: delivery to %s failed: %v", userID, err)
	}
}
