package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-display/internal/detection"
	"github.com/tphakala/birdnet-display/internal/display"
	"github.com/tphakala/birdnet-display/internal/errors"
	"github.com/tphakala/birdnet-display/internal/pinned"
)

// DataResponse is the payload polled by the display page.
type DataResponse struct {
	Birds         []detection.Detection `json:"birds"`
	APIIsDown     bool                  `json:"api_is_down"`
	RequiresSetup bool                  `json:"requires_setup"`
	ConfigVersion int                   `json:"config_version"`
}

// DebugResponse is the full dump served at /debug/bird_data.
type DebugResponse struct {
	GeneratedAt string                `json:"generated_at"`
	APIIsDown   bool                  `json:"api_is_down"`
	Count       int                   `json:"count"`
	Birds       []detection.Detection `json:"birds"`
}

// StatusResponse acknowledges a state change.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// BaseURLRequest is the body of POST /api/config/base_url.
type BaseURLRequest struct {
	BaseURL string `json:"base_url"`
}

// BaseURLResponse confirms a station address change.
type BaseURLResponse struct {
	Status        string `json:"status"`
	BaseURL       string `json:"base_url"`
	RequiresSetup bool   `json:"requires_setup"`
	ConfigVersion int    `json:"config_version"`
}

// getData handles GET /data. force=1 bypasses the freshness window.
func (s *Server) getData(c echo.Context) error {
	if !s.engine.Configured() {
		return c.JSON(http.StatusOK, DataResponse{
			Birds:         []detection.Detection{},
			APIIsDown:     true,
			RequiresSetup: true,
			ConfigVersion: s.engine.ConfigVersion(),
		})
	}

	var snap display.Snapshot
	if c.QueryParam("force") == "1" {
		snap = s.engine.Refresh(c.Request().Context())
	} else {
		snap = s.engine.Detections(c.Request().Context())
	}

	return c.JSON(http.StatusOK, DataResponse{
		Birds:         nonNil(snap.Detections),
		APIIsDown:     snap.SourceDown,
		ConfigVersion: s.engine.ConfigVersion(),
	})
}

func (s *Server) getDebugBirdData(c echo.Context) error {
	snap := s.engine.Detections(c.Request().Context())
	birds := nonNil(snap.Detections)
	return c.JSONPretty(http.StatusOK, DebugResponse{
		GeneratedAt: s.now().Format(time.RFC3339),
		APIIsDown:   snap.SourceDown,
		Count:       len(birds),
		Birds:       birds,
	}, "  ")
}

func (s *Server) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"configured":     s.engine.Configured(),
		"config_version": s.engine.ConfigVersion(),
	})
}

func (s *Server) getPinnedSpecies(c echo.Context) error {
	pins := s.engine.ActivePins()
	if pins == nil {
		pins = []pinned.Pin{}
	}
	return c.JSON(http.StatusOK, pins)
}

func (s *Server) dismissPinned(c echo.Context) error {
	species, err := url.PathUnescape(c.Param("species"))
	if err != nil || strings.TrimSpace(species) == "" {
		return s.HandleError(c, err, "Invalid species name", http.StatusBadRequest)
	}

	if !s.engine.Dismiss(species) {
		return s.HandleError(c, nil, fmt.Sprintf("%s not found in pinned list", species), http.StatusNotFound)
	}

	return c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: species + " dismissed"})
}

func (s *Server) dismissAllPinned(c echo.Context) error {
	s.engine.DismissAll()
	return c.JSON(http.StatusOK, StatusResponse{Status: "success", Message: "All pinned species dismissed"})
}

func (s *Server) updateBaseURL(c echo.Context) error {
	var req BaseURLRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "Invalid request body", http.StatusBadRequest)
	}
	if strings.TrimSpace(req.BaseURL) == "" {
		return s.HandleError(c, nil, "Base URL is required.", http.StatusBadRequest)
	}

	base, err := s.engine.UpdateBaseURL(req.BaseURL)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return s.HandleError(c, err, "Invalid base URL", http.StatusBadRequest)
		}
		return s.HandleError(c, err, "Failed to save base URL", http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, BaseURLResponse{
		Status:        "success",
		BaseURL:       base,
		RequiresSetup: false,
		ConfigVersion: s.engine.ConfigVersion(),
	})
}

func nonNil(birds []detection.Detection) []detection.Detection {
	if birds == nil {
		return []detection.Detection{}
	}
	return birds
}
