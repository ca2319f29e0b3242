package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatlinkAPI/internal/directory"
	"chatlinkAPI/internal/user"
)

// UserService covers the profile side of the directory: reads, profile
// edits, first-login provisioning and device-token registration.
type UserService struct {
	store directory.Store
}

func NewUserService(store directory.Store) *UserService {
	return &UserService{store: store}
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*user.Record, error) {
	return s.store.GetUser(ctx, id)
}

// EnsureUser returns the profile for uid, creating it on first login from
// the identity provider's claims. The mobile clients historically wrote
// this document themselves at registration; Create keeps both paths safe.
func (s *UserService) EnsureUser(ctx context.Context, uid, email, displayName string) (*user.Record, error) {
	rec, err := s.store.GetUser(ctx, uid)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("loading user %s: %w", uid, err)
	}

	now := time.Now()
	rec = &user.Record{
		ID:          uid,
		UID:         uid,
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateUser(ctx, rec); err != nil {
		if errors.Is(err, directory.ErrExists) {
			return s.store.GetUser(ctx, uid)
		}
		return nil, fmt.Errorf("creating user %s: %w", uid, err)
	}
	return rec, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, req *user.UpdateProfileRequest) (*user.Record, error) {
	return s.store.UpdateProfile(ctx, id, req)
}

func (s *UserService) RegisterDevice(ctx context.Context, id, token string) error {
	if token == "" {
		return fmt.Errorf("device token is required")
	}
	return s.store.AddDeviceToken(ctx, id, token)
}
