package dto

type AddLocationRequest struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type LocationResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type WeatherResponse struct {
	CityName    string   `json:"city_name"`
	CountryCode string   `json:"country_code,omitempty"`
	TempC       *float64 `json:"temp_c,omitempty"`
	FeelsLikeC  *float64 `json:"feels_like_c,omitempty"`
	HumidityPct *int     `json:"humidity_pct,omitempty"`
	Description string   `json:"description,omitempty"`
	IconURL     string   `json:"icon_url,omitempty"`
}

type DashboardItemResponse struct {
	Location LocationResponse `json:"location"`
	Weather  WeatherResponse  `json:"weather"`
}

type DashboardResponse struct {
	Items []DashboardItemResponse `json:"items"`
}

type SearchPlaceResponse struct {
	Name        string  `json:"name"`
	CountryCode string  `json:"country_code,omitempty"`
	State       string  `json:"state,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type SearchResponse struct {
	Results []SearchPlaceResponse `json:"results"`
}
