// internal/app/system/limits/limits.go
package limits

// Request body caps for form endpoints.
const (
	// MaxLoginFormSize bounds POST /login.
	MaxLoginFormSize = 16 << 10 // 16 KB

	// MaxFacilityFormSize bounds facility create/edit and membership forms.
	// Descriptions are the only large field.
	MaxFacilityFormSize = 256 << 10 // 256 KB

	// MaxSeedFileSize bounds a facility seed file read by roadmapctl.
	MaxSeedFileSize = 4 << 20 // 4 MB
)
