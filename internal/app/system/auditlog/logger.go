// internal/app/system/auditlog/logger.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/vpcroadmap/internal/app/store/audit"
	"github.com/dalemusser/vpcroadmap/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of events.
const (
	ModeAll = "all" // MongoDB and zap
	ModeDB  = "db"
	ModeLog = "log"
	ModeOff = "off"
)

// Config picks a destination per category.
type Config struct {
	Auth  string
	Admin string
}

// ValidMode reports whether m is one of the Mode constants.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Logger writes audit events to the audit store and/or zap.
// A nil *Logger is a no-op.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) mode(category string) string {
	var m string
	switch category {
	case audit.CategoryAuth:
		m = l.config.Auth
	case audit.CategoryAdmin:
		m = l.config.Admin
	}
	if m == "" {
		return ModeAll
	}
	return m
}

// Log records event according to the category's mode. Storage failures are
// logged and swallowed; an audit write never fails the caller's request.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	m := l.mode(event.Category)
	if m == ModeOff {
		return
	}
	if m == ModeAll || m == ModeLog {
		l.logToZap(event)
	}
	if (m == ModeAll || m == ModeDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.FacilityID != nil {
		fields = append(fields, zap.String("facility_id", event.FacilityID.Hex()))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// withRequest stamps the caller's address and agent onto e. CLI events
// carry no request.
func withRequest(e audit.Event, r *http.Request) audit.Event {
	if r != nil {
		e.IP = ratelimit.ClientIP(r)
		e.UserAgent = r.UserAgent()
	}
	return e
}

func oidPtr(hex string) *primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &oid
}

// --- Authentication Events ---

func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	l.Log(ctx, withRequest(audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"login_id": loginID},
	}, r))
}

// LoginFailed records a rejected credential check. The attempted login ID
// is kept even when it matches no user.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, attemptedLoginID, reason string) {
	l.Log(ctx, withRequest(audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailed,
		FailureReason: reason,
		Details:       map[string]string{"attempted_login_id": attemptedLoginID},
	}, r))
}

func (l *Logger) LoginRateLimited(ctx context.Context, r *http.Request, attemptedLoginID string) {
	l.Log(ctx, withRequest(audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginRateLimited,
		FailureReason: "rate limit exceeded",
		Details:       map[string]string{"attempted_login_id": attemptedLoginID},
	}, r))
}

// Logout takes the session user's hex id.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, withRequest(audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    oidPtr(userID),
		Success:   true,
	}, r))
}

// --- Facility Events ---

func (l *Logger) FacilityCreated(ctx context.Context, r *http.Request, actorID, facilityID primitive.ObjectID, code string) {
	l.Log(ctx, withRequest(audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventFacilityCreated,
		FacilityID: &facilityID,
		ActorID:    &actorID,
		Success:    true,
		Details:    map[string]string{"code": code},
	}, r))
}

// FacilityUpdated lists the form fields that were submitted.
func (l *Logger) FacilityUpdated(ctx context.Context, r *http.Request, actorID, facilityID primitive.ObjectID, fields []string) {
	l.Log(ctx, withRequest(audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventFacilityUpdated,
		FacilityID: &facilityID,
		ActorID:    &actorID,
		Success:    true,
		Details:    map[string]string{"fields": strings.Join(fields, ",")},
	}, r))
}

// FacilitySeeded is written by roadmapctl, so it has no actor or request.
func (l *Logger) FacilitySeeded(ctx context.Context, facilityID primitive.ObjectID, code string, created bool) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventFacilitySeeded,
		FacilityID: &facilityID,
		Success:    true,
		Details: map[string]string{
			"code":    code,
			"created": fmt.Sprint(created),
		},
	})
}

// FacilityDeleted is written by roadmapctl with the number of memberships
// removed alongside the facility.
func (l *Logger) FacilityDeleted(ctx context.Context, facilityID primitive.ObjectID, code string, memberships int64) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventFacilityDeleted,
		FacilityID: &facilityID,
		Success:    true,
		Details: map[string]string{
			"code":        code,
			"memberships": fmt.Sprint(memberships),
		},
	})
}

func (l *Logger) MembershipGranted(ctx context.Context, r *http.Request, actorID, userID, facilityID primitive.ObjectID, role string) {
	l.Log(ctx, withRequest(audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventMembershipGranted,
		FacilityID: &facilityID,
		UserID:     &userID,
		ActorID:    &actorID,
		Success:    true,
		Details:    map[string]string{"role": role},
	}, r))
}

func (l *Logger) MembershipRevoked(ctx context.Context, r *http.Request, actorID, userID, facilityID primitive.ObjectID) {
	l.Log(ctx, withRequest(audit.Event{
		Category:   audit.CategoryAdmin,
		EventType:  audit.EventMembershipRevoked,
		FacilityID: &facilityID,
		UserID:     &userID,
		ActorID:    &actorID,
		Success:    true,
	}, r))
}
