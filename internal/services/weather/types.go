package weather

import "errors"

// ErrUpstreamUnavailable covers every gateway failure mode: transport
// errors, timeouts, non-2xx statuses and malformed payloads. Callers degrade
// rather than retry.
var ErrUpstreamUnavailable = errors.New("weather provider unavailable")

// Snapshot is the current-conditions view for one coordinate pair. Fields
// absent from the provider payload stay nil instead of defaulting to zero.
type Snapshot struct {
	CityName    string
	CountryCode string
	TempC       *float64
	FeelsLikeC  *float64
	HumidityPct *int
	Description string
	IconURL     string
}

// Place is a geocoding hit for a free-text query.
type Place struct {
	Name        string
	CountryCode string
	State       string
	Lat         float64
	Lon         float64
}

type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *int     `json:"humidity"`
	} `json:"main"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
}

type geocodeResponse struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	State   string  `json:"state"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}
