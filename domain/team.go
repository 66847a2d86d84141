package domain

import (
	"slices"
	"time"
)

// Team groups users who share projects.
type Team struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	OwnerID     string    `json:"ownerId" bson:"ownerId"`
	MemberIDs   []string  `json:"memberIds" bson:"memberIds"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// HasMember reports whether userID owns or belongs to the team.
func (t Team) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	return t.OwnerID == userID || slices.Contains(t.MemberIDs, userID)
}

// TeamPatch carries partial updates for a team.
type TeamPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// User is the profile stored for an identity-provider subject.
type User struct {
	ID          string    `json:"id" bson:"_id"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
	Title       string    `json:"title,omitempty" bson:"title,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}
