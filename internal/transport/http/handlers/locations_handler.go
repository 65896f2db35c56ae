package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/LuzhinLoop/weather-viewer/internal/services/auth"
	locsvc "github.com/LuzhinLoop/weather-viewer/internal/services/locations"
	"github.com/LuzhinLoop/weather-viewer/internal/services/weather"
	"github.com/LuzhinLoop/weather-viewer/internal/transport/http/dto"
	httperrors "github.com/LuzhinLoop/weather-viewer/internal/transport/http/errors"
)

type LocationsHandler struct {
	service *locsvc.Service
}

func NewLocationsHandler(service *locsvc.Service) *LocationsHandler {
	return &LocationsHandler{service: service}
}

func (h *LocationsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		h.handleLocationError(w, err)
		return
	}

	res := dto.DashboardResponse{Items: make([]dto.DashboardItemResponse, 0, len(items))}
	for _, item := range items {
		res.Items = append(res.Items, dto.DashboardItemResponse{
			Location: toLocationResponse(item.Location),
			Weather: dto.WeatherResponse{
				CityName:    item.Weather.CityName,
				CountryCode: item.Weather.CountryCode,
				TempC:       item.Weather.TempC,
				FeelsLikeC:  item.Weather.FeelsLikeC,
				HumidityPct: item.Weather.HumidityPct,
				Description: item.Weather.Description,
				IconURL:     item.Weather.IconURL,
			},
		})
	}

	httperrors.Write(w, http.StatusOK, res)
}

func (h *LocationsHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req dto.AddLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "INVALID_REQUEST", "invalid request body")
		return
	}

	saved, err := h.service.Add(r.Context(), userID, locsvc.AddInput{
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		h.handleLocationError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, toLocationResponse(saved))
}

func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	locationID, err := strconv.ParseInt(chi.URLParam(r, "locationID"), 10, 64)
	if err != nil || locationID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "location id must be a positive integer")
		return
	}

	if err := h.service.Delete(r.Context(), userID, locationID); err != nil {
		h.handleLocationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *LocationsHandler) Search(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	places, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), 0)
	if err != nil {
		h.handleLocationError(w, err)
		return
	}

	res := dto.SearchResponse{Results: make([]dto.SearchPlaceResponse, 0, len(places))}
	for _, place := range places {
		res.Results = append(res.Results, dto.SearchPlaceResponse{
			Name:        place.Name,
			CountryCode: place.CountryCode,
			State:       place.State,
			Latitude:    place.Lat,
			Longitude:   place.Lon,
		})
	}

	httperrors.Write(w, http.StatusOK, res)
}

func (h *LocationsHandler) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if h.service == nil {
		writeInternal(w, "LOCATIONS_SERVICE_UNAVAILABLE", "locations service is unavailable")
		return 0, false
	}
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return 0, false
	}
	return identity.UserID, true
}

func (h *LocationsHandler) handleLocationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, locsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, locsvc.ErrQuotaExceeded):
		httperrors.Write(w, http.StatusUnprocessableEntity, httperrors.APIError{
			Code:    "QUOTA_EXCEEDED",
			Message: "You can't add more saved locations.",
		})
	case errors.Is(err, locsvc.ErrDuplicateLocation):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{
			Code:    "DUPLICATE_LOCATION",
			Message: "This location has already been added.",
		})
	case errors.Is(err, locsvc.ErrNotFound):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
			Code:    "NOT_FOUND",
			Message: "location not found",
		})
	case errors.Is(err, weather.ErrUpstreamUnavailable):
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
			Code:    "WEATHER_UNAVAILABLE",
			Message: "weather provider is unavailable, try again later",
		})
	default:
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func toLocationResponse(saved locsvc.Saved) dto.LocationResponse {
	return dto.LocationResponse{
		ID:        saved.ID,
		Name:      saved.Name,
		Latitude:  saved.Latitude,
		Longitude: saved.Longitude,
	}
}
