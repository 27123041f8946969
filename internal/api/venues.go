package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"kidspark/internal/metrics"
	"kidspark/internal/model"
)

type venueRequest struct {
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	HourlyPrice float64 `json:"hourly_price"`
}

func (r *venueRequest) validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "enter the venue name"
	}
	if strings.TrimSpace(r.Location) == "" {
		return "enter the location"
	}
	if r.HourlyPrice <= 0 {
		return "enter a positive hourly price"
	}
	return ""
}

func (s *Server) handleListVenues(c echo.Context) error {
	metrics.IncHTTP("list_venues")

	venues, err := s.db.ListVenues(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"venues": venues})
}

func (s *Server) handleGetVenue(c echo.Context) error {
	metrics.IncHTTP("get_venue")

	venue, err := s.db.GetVenue(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, venue)
}

func (s *Server) handleOwnerVenues(c echo.Context) error {
	metrics.IncHTTP("owner_venues")

	venues, err := s.db.ListVenuesByOwner(c.Request().Context(), holderID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"venues": venues})
}

func (s *Server) handleVenueSlots(c echo.Context) error {
	metrics.IncHTTP("venue_slots")

	ctx := c.Request().Context()
	venueID := c.Param("id")
	date := c.QueryParam("date")
	if date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date query parameter is required"})
	}

	if _, err := s.db.GetVenue(ctx, venueID); err != nil {
		return writeError(c, err)
	}

	if infos, ok := s.cache.Get(ctx, venueID, date); ok {
		return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": infos})
	}

	infos, err := s.db.DaySlots(ctx, venueID, date, s.now(), s.guard.Window())
	if err != nil {
		return writeError(c, err)
	}
	s.cache.Set(ctx, venueID, date, infos)
	return c.JSON(http.StatusOK, echo.Map{"date": date, "slots": infos})
}

func (s *Server) handleCreateVenue(c echo.Context) error {
	metrics.IncHTTP("create_venue")

	var req venueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	venue := &model.Venue{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Location:    strings.TrimSpace(req.Location),
		HourlyPrice: req.HourlyPrice,
		OwnerID:     holderID(c),
	}
	if err := s.db.CreateVenue(c.Request().Context(), venue); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, venue)
}

func (s *Server) handleUpdateVenue(c echo.Context) error {
	metrics.IncHTTP("update_venue")

	var req venueRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	venue := &model.Venue{
		ID:          c.Param("id"),
		Name:        strings.TrimSpace(req.Name),
		Location:    strings.TrimSpace(req.Location),
		HourlyPrice: req.HourlyPrice,
	}
	if err := s.db.UpdateVenue(c.Request().Context(), venue, holderID(c)); err != nil {
		return writeError(c, err)
	}

	// Day views embed nothing venue-specific beyond the key, so no cache
	// invalidation is needed on metadata edits.
	return c.JSON(http.StatusOK, venue)
}

func (s *Server) handleDeleteVenue(c echo.Context) error {
	metrics.IncHTTP("delete_venue")

	ctx := c.Request().Context()
	venueID := c.Param("id")
	if err := s.db.DeleteVenue(ctx, venueID, holderID(c), s.now(), s.guard.Window()); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
