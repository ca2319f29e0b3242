package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"chatlinkAPI/internal/directory"
	"chatlinkAPI/internal/types/friendship"
	"chatlinkAPI/middleware"
)

const reconcilePageSize = 100

// ReconcileService detects and repairs one-sided friend edges left behind by
// failed two-document writes. The friend-request record is the source of
// truth: an accepted request between the pair means the edge was intended,
// so the missing side is completed; otherwise the orphan entry is removed.
type ReconcileService struct {
	store directory.Store
}

func NewReconcileService(store directory.Store) *ReconcileService {
	return &ReconcileService{store: store}
}

// Run executes reconciliation passes every interval until ctx is cancelled.
// Start it from main with `go reconcileService.Run(ctx, interval)`.
func (s *ReconcileService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reconciler stopped")
			return
		case <-ticker.C:
			repaired, err := s.ReconcileAll(ctx)
			if err != nil {
				log.Printf("Reconciler pass failed: %v", err)
				continue
			}
			if repaired > 0 {
				log.Printf("Reconciler pass repaired %d one-sided edges", repaired)
			}
		}
	}
}

// ReconcileAll pages through every user and reconciles each friend list.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (int, error) {
	repaired := 0
	startAfter := ""
	for {
		ids, err := s.store.ListUserIDs(ctx, startAfter, reconcilePageSize)
		if err != nil {
			return repaired, fmt.Errorf("paging users: %w", err)
		}
		if len(ids) == 0 {
			return repaired, nil
		}
		for _, id := range ids {
			n, err := s.ReconcileUser(ctx, id)
			if err != nil {
				log.Printf("Reconciler: user %s: %v", id, err)
				continue
			}
			repaired += n
		}
		startAfter = ids[len(ids)-1]
	}
}

// ReconcileUser checks every friend entry of one user for a reciprocal
// entry and repairs the ones missing it. Returns the number of repairs.
func (s *ReconcileService) ReconcileUser(ctx context.Context, userID string) (int, error) {
	entries, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("listing friends: %w", err)
	}

	repaired := 0
	for _, entry := range entries {
		_, err := s.store.GetFriend(ctx, entry.FriendID, userID)
		if err == nil {
			continue
		}
		if !errors.Is(err, directory.ErrNotFound) {
			return repaired, fmt.Errorf("checking reciprocal entry: %w", err)
		}

		middleware.CountReconcilerAction("detected")
		log.Printf("Reconciler: one-sided edge %s -> %s", userID, entry.FriendID)

		if err := s.repair(ctx, userID, entry); err != nil {
			return repaired, err
		}
		repaired++
	}
	return repaired, nil
}

func (s *ReconcileService) repair(ctx context.Context, userID string, entry friendship.Entry) error {
	accepted, err := acceptedRequestBetween(ctx, s.store, userID, entry.FriendID)
	if err != nil {
		return err
	}

	if accepted == nil {
		// No accepted request: the edge was half-removed or never agreed to.
		if err := s.store.DeleteFriend(ctx, userID, entry.FriendID); err != nil {
			return fmt.Errorf("removing orphan entry %s -> %s: %w", userID, entry.FriendID, err)
		}
		middleware.CountReconcilerAction("removed_orphan")
		return nil
	}

	// Accepted request exists: complete the missing side from the user's own
	// record so the reciprocal entry carries a current snapshot.
	rec, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading %s for repair: %w", userID, err)
	}
	reciprocal := friendship.Entry{
		FriendID:     userID,
		Email:        rec.Email,
		DisplayName:  rec.DisplayName,
		ProfileImage: rec.ProfileImage,
		AddedAt:      time.Now(),
	}
	if err := s.store.PutFriend(ctx, entry.FriendID, reciprocal); err != nil {
		return fmt.Errorf("completing edge %s -> %s: %w", entry.FriendID, userID, err)
	}
	middleware.CountReconcilerAction("completed_edge")
	return nil
}

// acceptedRequestBetween finds an accepted request in either direction of
// the unordered pair, or nil. Removal deletes this record, which is what
// lets repair tell a half-added edge from a half-removed one.
func acceptedRequestBetween(ctx context.Context, store directory.Store, aID, bID string) (*friendship.Request, error) {
	for _, pair := range [][2]string{{aID, bID}, {bID, aID}} {
		req, err := store.FindRequest(ctx, pair[0], pair[1], friendship.RequestAccepted)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("finding accepted request for %s: %w", pair[0], err)
		}
	}
	return nil, nil
}
