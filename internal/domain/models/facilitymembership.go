// internal/domain/models/facilitymembership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FacilityMembership is the authoritative join between users and facilities.
// Exactly one document per (user_id, facility_id); role is a scalar
// ("viewer" | "editor" | "facility_admin"). At most one membership per user
// should carry IsPrimary; the store clears other primaries when one is set.
type FacilityMembership struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	FacilityID primitive.ObjectID `bson:"facility_id" json:"facility_id"`
	Role       string             `bson:"role" json:"role"`
	IsPrimary  bool               `bson:"is_primary" json:"is_primary"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}
