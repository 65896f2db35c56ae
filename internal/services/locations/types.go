package locations

import (
	"errors"

	"github.com/LuzhinLoop/weather-viewer/internal/services/weather"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrQuotaExceeded     = errors.New("saved locations quota exceeded")
	ErrDuplicateLocation = errors.New("location already saved")
	ErrNotFound          = errors.New("location not found")
)

// Saved is one stored location as the service exposes it.
type Saved struct {
	ID        int64
	Name      string
	Latitude  float64
	Longitude float64
}

// DashboardItem pairs a stored location with its current conditions.
type DashboardItem struct {
	Location Saved
	Weather  weather.Snapshot
}

// AddInput is the payload for saving a new location.
type AddInput struct {
	Name      string
	Latitude  float64
	Longitude float64
}
