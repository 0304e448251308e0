package facilities

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/vpcroadmap/internal/app/store/audit"
	"github.com/dalemusser/vpcroadmap/internal/app/system/paging"
	"github.com/dalemusser/vpcroadmap/internal/app/system/respond"
	"github.com/dalemusser/vpcroadmap/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type activityItem struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	ActorName  string            `json:"actor_name,omitempty"`
	TargetName string            `json:"target_name,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

type activityView struct {
	FacilityID string         `json:"facility_id"`
	Items      []activityItem `json:"items"`
	Page       paging.Page    `json:"page"`
}

// ServeActivity handles GET /f/{code}/activity?start=N: the facility's admin
// events, newest first, fifty at a time.
// Authorization: facility.RequireManageMembers in routes.go.
func (h *Handler) ServeActivity(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.requestStore(w, r); !ok {
		return
	}
	cur, fid, ok := h.requestFacility(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	start := paging.ParseStart(r)
	events, err := h.Events.Query(ctx, audit.QueryFilter{
		FacilityID: &fid,
		Category:   audit.CategoryAdmin,
		Limit:      paging.LimitPlusOne(),
		Offset:     paging.Offset(start),
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query facility activity failed", err, "A database error occurred.", facilityPath(cur.Code))
		return
	}
	page := paging.Trim(&events, start)

	names := h.userNames(ctx, events)
	items := make([]activityItem, 0, len(events))
	for _, e := range events {
		items = append(items, activityItem{
			ID:         e.ID.Hex(),
			Timestamp:  e.Timestamp,
			EventType:  e.EventType,
			ActorName:  nameOf(names, e.ActorID),
			TargetName: nameOf(names, e.UserID),
			Details:    e.Details,
		})
	}

	respond.JSON(w, http.StatusOK, activityView{
		FacilityID: fid.Hex(),
		Items:      items,
		Page:       page,
	})
}

// userNames resolves actor and target ids in one query. A lookup failure
// only costs the names; ids are shown instead.
func (h *Handler) userNames(ctx context.Context, events []audit.Event) map[primitive.ObjectID]string {
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, e := range events {
		for _, id := range []*primitive.ObjectID{e.ActorID, e.UserID} {
			if id != nil && !seen[*id] {
				seen[*id] = true
				ids = append(ids, *id)
			}
		}
	}

	names := make(map[primitive.ObjectID]string, len(ids))
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		h.Log.Warn("resolve activity user names failed", zap.Error(err))
		return names
	}
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	return names
}

func nameOf(names map[primitive.ObjectID]string, id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	if n, ok := names[*id]; ok {
		return n
	}
	return id.Hex()
}
