package directory

import (
	"context"
	"errors"
	"time"

	"chatlinkAPI/internal/types/friendship"
	"chatlinkAPI/internal/user"
)

var (
	// ErrNotFound means the requested document does not exist. Callers must
	// treat it as a distinct case, never as an empty result.
	ErrNotFound = errors.New("directory: not found")

	// ErrExists means a create hit an existing document.
	ErrExists = errors.New("directory: already exists")

	// ErrUnavailable wraps transport or backend failures.
	ErrUnavailable = errors.New("directory: backend unavailable")
)

// Store is the directory-service contract: point lookups by identifier,
// exact-match email queries, and read/write/delete of a user record's
// friend-list and incoming-request sub-collections. Writes are per-document;
// nothing here is transactional across documents.
type Store interface {
	GetUser(ctx context.Context, id string) (*user.Record, error)
	GetUserByEmail(ctx context.Context, email string) (*user.Record, error)
	CreateUser(ctx context.Context, rec *user.Record) error
	UpdateProfile(ctx context.Context, id string, req *user.UpdateProfileRequest) (*user.Record, error)
	AddDeviceToken(ctx context.Context, id, token string) error

	// ListUserIDs pages through user document IDs in lexicographic order,
	// starting after startAfter ("" for the first page). Used by the
	// reconciler only.
	ListUserIDs(ctx context.Context, startAfter string, limit int) ([]string, error)

	ListFriends(ctx context.Context, userID string) ([]friendship.Entry, error)
	GetFriend(ctx context.Context, userID, friendID string) (*friendship.Entry, error)
	PutFriend(ctx context.Context, userID string, entry friendship.Entry) error
	DeleteFriend(ctx context.Context, userID, friendID string) error

	ListRequests(ctx context.Context, receiverID string) ([]friendship.Request, error)
	GetRequest(ctx context.Context, receiverID, requestID string) (*friendship.Request, error)
	// FindRequest returns the request from senderID with the given status
	// sitting in receiverID's incoming sub-collection, or ErrNotFound.
	FindRequest(ctx context.Context, receiverID, senderID string, status friendship.RequestStatus) (*friendship.Request, error)
	CreateRequest(ctx context.Context, req *friendship.Request) error
	SetRequestStatus(ctx context.Context, receiverID, requestID string, status friendship.RequestStatus, at time.Time) error
	// DeleteRequest removes a request document. Deleting a missing request
	// is not an error, so replays stay safe.
	DeleteRequest(ctx context.Context, receiverID, requestID string) error
}
