package domain

import "time"

// Group is a named collection of members sharing one message history.
// The membership list lives in its own relation, not on the group row.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatorID   string    `json:"creatorId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// GroupMember is the (group, user) membership relation. Unique, unordered.
type GroupMember struct {
	GroupID int64  `json:"groupId"`
	UserID  string `json:"userId"`
}
