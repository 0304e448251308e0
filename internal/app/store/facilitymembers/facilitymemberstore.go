// internal/app/store/facilitymembers/facilitymemberstore.go
package facilitymemberstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"errors"
	"fmt"
	"time"

	facilitystore "github.com/dalemusser/vpcroadmap/internal/app/store/facilities"
	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrBadRole  = errors.New(`role must be "viewer", "editor" or "facility_admin"`)
	ErrNotFound = errors.New("membership not found")
)

type Store struct {
	c          *mongo.Collection
	users      *mongo.Collection
	facilities *facilitystore.Store
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:          db.Collection("facility_memberships"),
		users:      db.Collection("users"),
		facilities: facilitystore.New(db),
	}
}

// Grant creates or updates the membership for (userID, facilityID).
// With primary=true every other membership of the user loses its primary flag.
func (s *Store) Grant(ctx context.Context, userID, facilityID primitive.ObjectID, role string, primary bool) (models.FacilityMembership, error) {
	r, ok := facility.ParseRole(role)
	if !ok {
		return models.FacilityMembership{}, ErrBadRole
	}

	now := time.Now().UTC()
	filter := bson.M{"user_id": userID, "facility_id": facilityID}
	update := bson.M{
		"$set": bson.M{
			"role":       string(r),
			"is_primary": primary,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var m models.FacilityMembership
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		return models.FacilityMembership{}, fmt.Errorf("grant membership: %w", err)
	}

	if primary {
		_, err := s.c.UpdateMany(ctx,
			bson.M{"user_id": userID, "facility_id": bson.M{"$ne": facilityID}, "is_primary": true},
			bson.M{"$set": bson.M{"is_primary": false, "updated_at": now}})
		if err != nil {
			return m, fmt.Errorf("clear other primaries: %w", err)
		}
	}
	return m, nil
}

// Get returns the membership for (userID, facilityID).
func (s *Store) Get(ctx context.Context, userID, facilityID primitive.ObjectID) (models.FacilityMembership, error) {
	var m models.FacilityMembership
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "facility_id": facilityID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return models.FacilityMembership{}, ErrNotFound
	}
	return m, err
}

// Revoke deletes the membership document for (userID, facilityID).
// Returns the number of documents deleted (0 or 1).
func (s *Store) Revoke(ctx context.Context, userID, facilityID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"user_id": userID, "facility_id": facilityID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByFacility removes every membership of a facility.
func (s *Store) DeleteByFacility(ctx context.Context, facilityID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"facility_id": facilityID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// CountForUser returns how many facilities the user belongs to.
func (s *Store) CountForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID})
}

// ListForUser returns the user's memberships joined with their facilities,
// oldest grant first. Memberships whose facility no longer exists are skipped.
// userID is the hex ObjectID carried in the session.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]facility.Membership, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: bad user id %q: %w", userID, err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"user_id": uid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.FacilityMembership
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.FacilityID)
	}
	facs, err := s.facilities.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Facility, len(facs))
	for _, f := range facs {
		byID[f.ID] = f
	}

	out := make([]facility.Membership, 0, len(rows))
	for _, m := range rows {
		f, ok := byID[m.FacilityID]
		if !ok {
			continue
		}
		out = append(out, facility.Membership{
			Facility:  facilitystore.ToFacility(f),
			Role:      facility.Role(m.Role),
			IsPrimary: m.IsPrimary,
		})
	}
	return out, nil
}

// MemberRow is one line of a facility's member list.
type MemberRow struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	LoginID   string `json:"login_id"`
	Role      string `json:"role"`
	IsPrimary bool   `json:"is_primary"`
}

// ListByFacility returns the members of a facility ordered by name.
func (s *Store) ListByFacility(ctx context.Context, facilityID primitive.ObjectID) ([]MemberRow, error) {
	cur, err := s.c.Find(ctx, bson.M{"facility_id": facilityID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.FacilityMembership
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []MemberRow{}, nil
	}

	userIDs := make([]primitive.ObjectID, 0, len(rows))
	byUser := make(map[primitive.ObjectID]models.FacilityMembership, len(rows))
	for _, m := range rows {
		userIDs = append(userIDs, m.UserID)
		byUser[m.UserID] = m
	}

	uopts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"full_name": 1, "login_id": 1})
	ucur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}}, uopts)
	if err != nil {
		return nil, err
	}
	defer ucur.Close(ctx)

	var users []models.User
	if err := ucur.All(ctx, &users); err != nil {
		return nil, err
	}

	out := make([]MemberRow, 0, len(users))
	for _, u := range users {
		m := byUser[u.ID]
		out = append(out, MemberRow{
			UserID:    u.ID.Hex(),
			FullName:  u.FullName,
			LoginID:   u.LoginID,
			Role:      m.Role,
			IsPrimary: m.IsPrimary,
		})
	}
	return out, nil
}
