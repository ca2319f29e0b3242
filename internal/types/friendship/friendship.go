package friendship

import (
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// Terminal reports whether the status is a closed state. Closed requests are
// never reopened; retrying after a decline means creating a new request.
func (s RequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestDeclined
}

// Request is a directed friend request stored under the receiver's user
// record. Sender and receiver profile fields are snapshots taken at creation
// time so the request list renders without extra lookups.
type Request struct {
	ID            string        `json:"id" firestore:"id"`
	SenderID      string        `json:"senderId" firestore:"senderId"`
	ReceiverID    string        `json:"receiverId" firestore:"receiverId"`
	SenderEmail   string        `json:"senderEmail" firestore:"senderEmail"`
	SenderName    string        `json:"senderName" firestore:"senderName"`
	SenderImage   string        `json:"senderImage,omitempty" firestore:"senderImage"`
	ReceiverEmail string        `json:"receiverEmail" firestore:"receiverEmail"`
	ReceiverName  string        `json:"receiverName" firestore:"receiverName"`
	ReceiverImage string        `json:"receiverImage,omitempty" firestore:"receiverImage"`
	Status        RequestStatus `json:"status" firestore:"status"`
	CreatedAt     time.Time     `json:"createdAt" firestore:"createdAt"`
	RespondedAt   *time.Time    `json:"respondedAt,omitempty" firestore:"respondedAt"`
}

// Entry is one side of a mutual friend edge: a friend-list document under a
// user record. The edge exists when both participants hold an entry for the
// other; the reconciler repairs one-sided edges.
type Entry struct {
	FriendID     string    `json:"friendId" firestore:"friendId"`
	Email        string    `json:"email" firestore:"email"`
	DisplayName  string    `json:"displayName" firestore:"displayName"`
	ProfileImage string    `json:"profileImage,omitempty" firestore:"profileImage"`
	AddedAt      time.Time `json:"addedAt" firestore:"addedAt"`
}
