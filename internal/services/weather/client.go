package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	currentPath = "/data/2.5/weather"
	geocodePath = "/geo/1.0/direct"

	maxLoggedBody = 500
)

type Config struct {
	BaseURL      string
	APIKey       string
	Lang         string
	Timeout      time.Duration
	GeocodeLimit int
}

// Client talks to the OpenWeather HTTP API. Every call is bounded by the
// configured timeout so one slow upstream request cannot stall a whole
// dashboard render.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	lang    string
	timeout time.Duration
	geoLim  int
	logger  *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.GeocodeLimit <= 0 {
		cfg.GeocodeLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		lang:    cfg.Lang,
		timeout: cfg.Timeout,
		geoLim:  cfg.GeocodeLimit,
		logger:  logger,
	}
}

// Current fetches the current conditions for a coordinate pair, metric
// units.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Snapshot, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("units", "metric")
	query.Set("appid", c.apiKey)
	if c.lang != "" {
		query.Set("lang", c.lang)
	}

	var payload currentResponse
	if err := c.getJSON(ctx, currentPath, query, &payload); err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		CityName:    payload.Name,
		CountryCode: payload.Sys.Country,
		TempC:       payload.Main.Temp,
		FeelsLikeC:  payload.Main.FeelsLike,
		HumidityPct: payload.Main.Humidity,
	}
	if len(payload.Weather) > 0 {
		snapshot.Description = payload.Weather[0].Description
		snapshot.IconURL = IconURL(payload.Weather[0].Icon)
	}

	return snapshot, nil
}

// Geocode resolves a free-text place query to coordinate candidates.
func (c *Client) Geocode(ctx context.Context, rawQuery string, limit int) ([]Place, error) {
	trimmed := strings.TrimSpace(rawQuery)
	if trimmed == "" {
		return nil, fmt.Errorf("geocode query must not be empty")
	}
	if limit <= 0 {
		limit = c.geoLim
	}

	query := url.Values{}
	query.Set("q", trimmed)
	query.Set("limit", strconv.Itoa(limit))
	query.Set("appid", c.apiKey)

	var payload []geocodeResponse
	if err := c.getJSON(ctx, geocodePath, query, &payload); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(payload))
	for _, hit := range payload {
		places = append(places, Place{
			Name:        hit.Name,
			CountryCode: hit.Country,
			State:       hit.State,
			Lat:         hit.Lat,
			Lon:         hit.Lon,
		})
	}

	return places, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, maskAPIKey(err.Error(), c.apiKey))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body", ErrUpstreamUnavailable)
	}

	if resp.StatusCode/100 != 2 {
		c.logger.Warn("weather provider non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("path", path),
			zap.String("body", truncate(string(body), maxLoggedBody)),
		)
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err)
	}

	return nil
}

func maskAPIKey(message, key string) string {
	if key == "" {
		return message
	}
	return strings.ReplaceAll(message, key, "****")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
