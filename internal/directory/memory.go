package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatlinkAPI/internal/types/friendship"
	"chatlinkAPI/internal/user"
)

// MemoryStore is an in-memory Store used by tests and local development.
// The hook fields let tests inject write failures to exercise the
// compensation and partial-write paths.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]*user.Record
	friends  map[string]map[string]friendship.Entry   // userID -> friendID -> entry
	requests map[string]map[string]friendship.Request // receiverID -> requestID -> request

	PutFriendHook    func(userID string, entry friendship.Entry) error
	DeleteFriendHook func(userID, friendID string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*user.Record),
		friends:  make(map[string]map[string]friendship.Entry),
		requests: make(map[string]map[string]friendship.Request),
	}
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*user.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*user.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if rec.Email == email {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateUser(ctx context.Context, rec *user.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.ID]; ok {
		return ErrExists
	}
	cp := *rec
	s.users[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, req *user.UpdateProfileRequest) (*user.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if req.DisplayName != "" {
		rec.DisplayName = req.DisplayName
	}
	if req.ProfileImage != "" {
		rec.ProfileImage = req.ProfileImage
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) AddDeviceToken(ctx context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	for _, t := range rec.DeviceTokens {
		if t == token {
			return nil
		}
	}
	rec.DeviceTokens = append(rec.DeviceTokens, token)
	return nil
}

func (s *MemoryStore) ListUserIDs(ctx context.Context, startAfter string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.users {
		if id > startAfter {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *MemoryStore) ListFriends(ctx context.Context, userID string) ([]friendship.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []friendship.Entry
	for _, e := range s.friends[userID] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FriendID < entries[j].FriendID })
	return entries, nil
}

func (s *MemoryStore) GetFriend(ctx context.Context, userID, friendID string) (*friendship.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.friends[userID][friendID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) PutFriend(ctx context.Context, userID string, entry friendship.Entry) error {
	if s.PutFriendHook != nil {
		if err := s.PutFriendHook(userID, entry); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.friends[userID] == nil {
		s.friends[userID] = make(map[string]friendship.Entry)
	}
	s.friends[userID][entry.FriendID] = entry
	return nil
}

func (s *MemoryStore) DeleteFriend(ctx context.Context, userID, friendID string) error {
	if s.DeleteFriendHook != nil {
		if err := s.DeleteFriendHook(userID, friendID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.friends[userID], friendID)
	return nil
}

func (s *MemoryStore) ListRequests(ctx context.Context, receiverID string) ([]friendship.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var requests []friendship.Request
	for _, req := range s.requests[receiverID] {
		if req.Status == friendship.RequestPending {
			requests = append(requests, req)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, receiverID, requestID string) (*friendship.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[receiverID][requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (s *MemoryStore) FindRequest(ctx context.Context, receiverID, senderID string, st friendship.RequestStatus) (*friendship.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests[receiverID] {
		if req.SenderID == senderID && req.Status == st {
			return &req, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateRequest(ctx context.Context, req *friendship.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requests[req.ReceiverID] == nil {
		s.requests[req.ReceiverID] = make(map[string]friendship.Request)
	}
	if _, ok := s.requests[req.ReceiverID][req.ID]; ok {
		return ErrExists
	}
	s.requests[req.ReceiverID][req.ID] = *req
	return nil
}

func (s *MemoryStore) DeleteRequest(ctx context.Context, receiverID, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests[receiverID], requestID)
	return nil
}

func (s *MemoryStore) SetRequestStatus(ctx context.Context, receiverID, requestID string, st friendship.RequestStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[receiverID][requestID]
	if !ok {
		return ErrNotFound
	}
	req.Status = st
	req.RespondedAt = &at
	s.requests[receiverID][requestID] = req
	return nil
}
