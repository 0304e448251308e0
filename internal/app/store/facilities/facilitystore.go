// internal/app/store/facilities/facilitystore.go
package facilitystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/system/facility"
	"github.com/dalemusser/vpcroadmap/internal/app/system/htmlsanitize"
	"github.com/dalemusser/vpcroadmap/internal/app/system/normalize"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timezones"
	"github.com/dalemusser/vpcroadmap/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const MaxMaturity = 5.0

var (
	ErrDuplicateCode   = errors.New("a facility with this code already exists")
	ErrNotFound        = errors.New("facility not found")
	ErrInvalidCode     = errors.New("facility code must be 3-4 letters or digits")
	ErrInvalidStatus   = errors.New("status must be active, planning, onboarding or inactive")
	ErrInvalidMaturity = errors.New("maturity score must be between 0 and 5")
	ErrNameRequired    = errors.New("facility name is required")
	ErrInvalidTimeZone = errors.New("time zone is not a supported US zone")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("facilities")}
}

// ValidStatus reports whether s is a known facility status.
func ValidStatus(s string) bool {
	switch s {
	case facility.StatusActive, facility.StatusPlanning, facility.StatusOnboarding, facility.StatusInactive:
		return true
	}
	return false
}

func validMaturity(v float64) bool { return v >= 0 && v <= MaxMaturity }

func (s *Store) Create(ctx context.Context, f models.Facility) (models.Facility, error) {
	f.Code = normalize.FacilityCode(f.Code)
	if !normalize.ValidFacilityCode(f.Code) {
		return models.Facility{}, ErrInvalidCode
	}
	f.Name = normalize.Name(f.Name)
	if f.Name == "" {
		return models.Facility{}, ErrNameRequired
	}
	f.Status = normalize.Status(f.Status)
	if f.Status == "" {
		f.Status = facility.StatusPlanning
	}
	if !ValidStatus(f.Status) {
		return models.Facility{}, ErrInvalidStatus
	}
	if !validMaturity(f.MaturityScore) {
		return models.Facility{}, ErrInvalidMaturity
	}
	if f.TimeZone != "" && !timezones.Valid(f.TimeZone) {
		return models.Facility{}, ErrInvalidTimeZone
	}

	now := time.Now().UTC()
	f.ID = primitive.NewObjectID()
	f.NameCI = text.Fold(f.Name)
	f.Description = htmlsanitize.Sanitize(f.Description)
	f.CreatedAt = now
	f.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, f); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Facility{}, ErrDuplicateCode
		}
		return models.Facility{}, err
	}
	return f, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Facility, error) {
	var f models.Facility
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if err == mongo.ErrNoDocuments {
		return models.Facility{}, ErrNotFound
	}
	return f, err
}

// GetByCode looks a facility up by its URL code (case-insensitive input).
func (s *Store) GetByCode(ctx context.Context, code string) (models.Facility, error) {
	var f models.Facility
	err := s.c.FindOne(ctx, bson.M{"code": normalize.FacilityCode(code)}).Decode(&f)
	if err == mongo.ErrNoDocuments {
		return models.Facility{}, ErrNotFound
	}
	return f, err
}

// GetByIDs loads several facilities in one query.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Facility, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Facility
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every facility ordered by name.
func (s *Store) List(ctx context.Context) ([]models.Facility, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Facility{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Patch carries the editable fields; nil means "leave as is".
// The code is immutable once created because it appears in bookmarked URLs.
type Patch struct {
	Name          *string
	City          *string
	State         *string
	Status        *string
	MaturityScore *float64
	TimeZone      *string
	Description   *string
}

// Update applies p and returns the stored result.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, p Patch) (models.Facility, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Name != nil {
		name := normalize.Name(*p.Name)
		if name == "" {
			return models.Facility{}, ErrNameRequired
		}
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	if p.City != nil {
		set["city"] = normalize.Name(*p.City)
	}
	if p.State != nil {
		set["state"] = normalize.Name(*p.State)
	}
	if p.Status != nil {
		st := normalize.Status(*p.Status)
		if !ValidStatus(st) {
			return models.Facility{}, ErrInvalidStatus
		}
		set["status"] = st
	}
	if p.MaturityScore != nil {
		if !validMaturity(*p.MaturityScore) {
			return models.Facility{}, ErrInvalidMaturity
		}
		set["maturity_score"] = *p.MaturityScore
	}
	if p.TimeZone != nil {
		if *p.TimeZone != "" && !timezones.Valid(*p.TimeZone) {
			return models.Facility{}, ErrInvalidTimeZone
		}
		set["time_zone"] = *p.TimeZone
	}
	if p.Description != nil {
		set["description"] = htmlsanitize.Sanitize(*p.Description)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out models.Facility
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return models.Facility{}, ErrNotFound
	}
	if err != nil {
		return models.Facility{}, fmt.Errorf("update facility %s: %w", id.Hex(), err)
	}
	return out, nil
}

// Delete removes a facility by ID. Returns the number of documents deleted (0 or 1).
// Memberships are removed by the caller (see facilitymemberstore.DeleteByFacility).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// FindByCode adapts GetByCode to the facility provider: (nil, nil) when no
// facility carries code.
func (s *Store) FindByCode(ctx context.Context, code string) (*facility.Facility, error) {
	f, err := s.GetByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v := ToFacility(f)
	return &v, nil
}

// ToFacility converts the stored document to the state container's read model.
func ToFacility(f models.Facility) facility.Facility {
	return facility.Facility{
		ID:            f.ID.Hex(),
		Code:          f.Code,
		Name:          f.Name,
		City:          f.City,
		State:         f.State,
		Status:        f.Status,
		MaturityScore: f.MaturityScore,
		TimeZone:      f.TimeZone,
		Description:   f.Description,
	}
}
