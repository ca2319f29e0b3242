package directory

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"chatlinkAPI/internal/types/friendship"
	"chatlinkAPI/internal/user"
)

const (
	usersCollection    = "users"
	friendsCollection  = "friends"
	requestsCollection = "requests"
)

// FirestoreStore implements Store on top of the app's Firestore project.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, app *firebase.App) (*FirestoreStore, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %v", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

// mapErr translates Firestore gRPC statuses into the directory taxonomy.
func mapErr(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return ErrNotFound
	case codes.AlreadyExists:
		return ErrExists
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (s *FirestoreStore) userDoc(id string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(id)
}

func (s *FirestoreStore) GetUser(ctx context.Context, id string) (*user.Record, error) {
	doc, err := s.userDoc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	rec := &user.Record{}
	if err := doc.DataTo(rec); err != nil {
		return nil, fmt.Errorf("decode user %s: %v", id, err)
	}
	rec.ID = doc.Ref.ID
	return rec, nil
}

func (s *FirestoreStore) GetUserByEmail(ctx context.Context, email string) (*user.Record, error) {
	// Exact, case-sensitive match, same as the mobile client's query.
	iter := s.client.Collection(usersCollection).
		Where("email", "==", email).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	rec := &user.Record{}
	if err := doc.DataTo(rec); err != nil {
		return nil, fmt.Errorf("decode user %s: %v", doc.Ref.ID, err)
	}
	rec.ID = doc.Ref.ID
	return rec, nil
}

func (s *FirestoreStore) CreateUser(ctx context.Context, rec *user.Record) error {
	if _, err := s.userDoc(rec.ID).Create(ctx, rec); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *FirestoreStore) UpdateProfile(ctx context.Context, id string, req *user.UpdateProfileRequest) (*user.Record, error) {
	updates := []firestore.Update{
		{Path: "updatedAt", Value: time.Now()},
	}
	if req.DisplayName != "" {
		updates = append(updates, firestore.Update{Path: "displayName", Value: req.DisplayName})
	}
	if req.ProfileImage != "" {
		updates = append(updates, firestore.Update{Path: "profileImage", Value: req.ProfileImage})
	}
	if _, err := s.userDoc(id).Update(ctx, updates); err != nil {
		return nil, mapErr(err)
	}
	return s.GetUser(ctx, id)
}

func (s *FirestoreStore) AddDeviceToken(ctx context.Context, id, token string) error {
	_, err := s.userDoc(id).Update(ctx, []firestore.Update{
		{Path: "deviceTokens", Value: firestore.ArrayUnion(token)},
	})
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *FirestoreStore) ListUserIDs(ctx context.Context, startAfter string, limit int) ([]string, error) {
	q := s.client.Collection(usersCollection).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(limit)
	if startAfter != "" {
		q = q.StartAfter(startAfter)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

func (s *FirestoreStore) ListFriends(ctx context.Context, userID string) ([]friendship.Entry, error) {
	iter := s.userDoc(userID).Collection(friendsCollection).Documents(ctx)
	defer iter.Stop()

	var entries []friendship.Entry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		var e friendship.Entry
		if err := doc.DataTo(&e); err != nil {
			return nil, fmt.Errorf("decode friend entry %s/%s: %v", userID, doc.Ref.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *FirestoreStore) GetFriend(ctx context.Context, userID, friendID string) (*friendship.Entry, error) {
	doc, err := s.userDoc(userID).Collection(friendsCollection).Doc(friendID).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	e := &friendship.Entry{}
	if err := doc.DataTo(e); err != nil {
		return nil, fmt.Errorf("decode friend entry %s/%s: %v", userID, friendID, err)
	}
	return e, nil
}

func (s *FirestoreStore) PutFriend(ctx context.Context, userID string, entry friendship.Entry) error {
	// Keyed by friend ID, so replays overwrite instead of duplicating.
	_, err := s.userDoc(userID).Collection(friendsCollection).Doc(entry.FriendID).Set(ctx, entry)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *FirestoreStore) DeleteFriend(ctx context.Context, userID, friendID string) error {
	if _, err := s.userDoc(userID).Collection(friendsCollection).Doc(friendID).Delete(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *FirestoreStore) ListRequests(ctx context.Context, receiverID string) ([]friendship.Request, error) {
	iter := s.userDoc(receiverID).Collection(requestsCollection).
		Where("status", "==", string(friendship.RequestPending)).
		Documents(ctx)
	defer iter.Stop()

	var requests []friendship.Request
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapErr(err)
		}
		var req friendship.Request
		if err := doc.DataTo(&req); err != nil {
			return nil, fmt.Errorf("decode request %s/%s: %v", receiverID, doc.Ref.ID, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func (s *FirestoreStore) GetRequest(ctx context.Context, receiverID, requestID string) (*friendship.Request, error) {
	doc, err := s.userDoc(receiverID).Collection(requestsCollection).Doc(requestID).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	req := &friendship.Request{}
	if err := doc.DataTo(req); err != nil {
		return nil, fmt.Errorf("decode request %s/%s: %v", receiverID, requestID, err)
	}
	return req, nil
}

func (s *FirestoreStore) FindRequest(ctx context.Context, receiverID, senderID string, st friendship.RequestStatus) (*friendship.Request, error) {
	iter := s.userDoc(receiverID).Collection(requestsCollection).
		Where("senderId", "==", senderID).
		Where("status", "==", string(st)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapErr(err)
	}
	req := &friendship.Request{}
	if err := doc.DataTo(req); err != nil {
		return nil, fmt.Errorf("decode request %s/%s: %v", receiverID, doc.Ref.ID, err)
	}
	return req, nil
}

func (s *FirestoreStore) CreateRequest(ctx context.Context, req *friendship.Request) error {
	_, err := s.userDoc(req.ReceiverID).Collection(requestsCollection).Doc(req.ID).Create(ctx, req)
	if err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *FirestoreStore) DeleteRequest(ctx context.Context, receiverID, requestID string) error {
	// Firestore deletes of missing documents succeed, matching the contract.
	if _, err := s.userDoc(receiverID).Collection(requestsCollection).Doc(requestID).Delete(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (s *FirestoreStore) SetRequestStatus(ctx context.Context, receiverID, requestID string, st friendship.RequestStatus, at time.Time) error {
	_, err := s.userDoc(receiverID).Collection(requestsCollection).Doc(requestID).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
		{Path: "respondedAt", Value: at},
	})
	if err != nil {
		return mapErr(err)
	}
	return nil
}
