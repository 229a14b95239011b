package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/models"
	"github.com/username/valorpme/backend/src/security/validation"
	"github.com/username/valorpme/backend/src/services"
)

type SectorHandler struct {
	sectors *services.SectorService
}

func NewSectorHandler(sectors *services.SectorService) *SectorHandler {
	return &SectorHandler{sectors: sectors}
}

func (h *SectorHandler) ListSectorsHandler(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.sectors.ListSectors()
	if err != nil {
		logger.L.Error("Failed to list sectors", "error", err)
		sendJSONError(w, "Failed to list sectors", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, sectors)
}

func (h *SectorHandler) GetSectorHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "sectorCode"))
	if err := validation.ValidateSectorCode(code); err != nil || code == "" {
		sendJSONError(w, "Invalid sector code", http.StatusBadRequest)
		return
	}

	sector, err := h.sectors.GetSector(code)
	if err != nil {
		if errors.Is(err, models.ErrSectorNotFound) {
			sendJSONError(w, "Sector not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to get sector", "sectorCode", code, "error", err)
		sendJSONError(w, "Failed to get sector", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, sector)
}

// ApplySectorHandler maps a sector's benchmark multiples onto a method
// configuration the client can drop into a valuation. Applying the same
// sector twice yields the same configuration.
func (h *SectorHandler) ApplySectorHandler(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "sectorCode"))
	if err := validation.ValidateSectorCode(code); err != nil || code == "" {
		sendJSONError(w, "Invalid sector code", http.StatusBadRequest)
		return
	}

	useAverage := r.URL.Query().Get("use_average") == "true"

	methods, err := h.sectors.ApplySector(code, useAverage)
	if err != nil {
		if errors.Is(err, models.ErrSectorNotFound) {
			sendJSONError(w, "Sector not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to apply sector", "sectorCode", code, "error", err)
		sendJSONError(w, "Failed to apply sector", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, methods)
}
