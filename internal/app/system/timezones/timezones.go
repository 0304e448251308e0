// Package timezones is the curated set of IANA zones a facility may carry.
package timezones

import (
	"sync"
	"time"
	_ "time/tzdata"
)

type Zone struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// curated lists US zones in east-to-west order. Facilities are US sites.
var curated = []Zone{
	{ID: "America/New_York", Label: "Eastern"},
	{ID: "America/Detroit", Label: "Eastern (Michigan)"},
	{ID: "America/Indiana/Indianapolis", Label: "Eastern (Indiana)"},
	{ID: "America/Puerto_Rico", Label: "Atlantic (Puerto Rico)"},
	{ID: "America/Chicago", Label: "Central"},
	{ID: "America/Denver", Label: "Mountain"},
	{ID: "America/Phoenix", Label: "Mountain (Arizona)"},
	{ID: "America/Los_Angeles", Label: "Pacific"},
	{ID: "America/Anchorage", Label: "Alaska"},
	{ID: "Pacific/Honolulu", Label: "Hawaii"},
	{ID: "Pacific/Guam", Label: "Chamorro (Guam)"},
}

var (
	loadOnce sync.Once
	byID     map[string]Zone
	loadErr  error
)

func load() {
	loadOnce.Do(func() {
		byID = make(map[string]Zone, len(curated))
		for _, z := range curated {
			if _, err := time.LoadLocation(z.ID); err != nil {
				loadErr = err
				return
			}
			byID[z.ID] = z
		}
	})
}

// Load checks every curated zone against the embedded tz database.
func Load() error {
	load()
	return loadErr
}

// All returns the curated zones in display order.
func All() []Zone {
	out := make([]Zone, len(curated))
	copy(out, curated)
	return out
}

// Label returns the human-friendly label for an ID, or the ID itself if not found.
func Label(id string) string {
	load()
	if z, ok := byID[id]; ok {
		return z.Label
	}
	return id
}

// Valid reports whether id is in the curated list.
func Valid(id string) bool {
	load()
	_, ok := byID[id]
	return ok
}
