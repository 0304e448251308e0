// internal/domain/models/facility.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Facility is one physical or organizational site tracked on the roadmap.
// Code is the short uppercase identifier used in URLs (e.g. "WLK").
type Facility struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Code          string             `bson:"code" json:"code"` // unique, uppercase, 3-4 chars
	Name          string             `bson:"name" json:"name"`
	NameCI        string             `bson:"name_ci" json:"-"` // ← always stored
	City          string             `bson:"city" json:"city"`
	State         string             `bson:"state" json:"state"`
	Status        string             `bson:"status" json:"status"` // active | planning | onboarding | inactive
	MaturityScore float64            `bson:"maturity_score" json:"maturity_score"`
	TimeZone      string             `bson:"time_zone" json:"time_zone"`
	Description   string             `bson:"description" json:"description"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}
