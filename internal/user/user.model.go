package user

import "time"

// Record is a user profile document in the directory. ID is the storage
// (document) identifier; UID is the identity-provider issued identifier.
// For accounts provisioned by this service the two match, but older
// documents created by the mobile clients may differ, so both are kept.
type Record struct {
	ID           string    `json:"id" firestore:"-"`
	UID          string    `json:"uid" firestore:"uid"`
	Email        string    `json:"email" firestore:"email"`
	DisplayName  string    `json:"displayName" firestore:"displayName"`
	ProfileImage string    `json:"profileImage,omitempty" firestore:"profileImage"`
	DeviceTokens []string  `json:"-" firestore:"deviceTokens"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Snapshot is the subset of a profile embedded into friend requests and
// friend-list entries.
type Snapshot struct {
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	ProfileImage string `json:"profileImage,omitempty"`
}

func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		ProfileImage: r.ProfileImage,
	}
}
