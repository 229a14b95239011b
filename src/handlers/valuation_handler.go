package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/username/valorpme/backend/src/database"
	"github.com/username/valorpme/backend/src/logger"
	"github.com/username/valorpme/backend/src/models"
	"github.com/username/valorpme/backend/src/security/validation"
	"github.com/username/valorpme/backend/src/services"
	"github.com/username/valorpme/backend/src/utils"
)

type ValuationHandler struct {
	engine  *services.ValuationEngine
	sectors *services.SectorService
}

func NewValuationHandler(engine *services.ValuationEngine, sectors *services.SectorService) *ValuationHandler {
	return &ValuationHandler{engine: engine, sectors: sectors}
}

// valuationPayload is the write shape shared by create and update.
type valuationPayload struct {
	Name        string                   `json:"name"`
	CompanyName string                   `json:"company_name"`
	SectorCode  string                   `json:"sector_code"`
	Status      string                   `json:"status"`
	Methods     *models.ValuationMethods `json:"valuation_methods"`
	Financials  models.FinancialData     `json:"financials"`
	Years       []models.ValuationYear   `json:"years"`
}

func (p *valuationPayload) validate() error {
	p.Name = validation.SanitizeText(strings.TrimSpace(p.Name))
	p.CompanyName = validation.SanitizeText(strings.TrimSpace(p.CompanyName))
	p.SectorCode = strings.TrimSpace(p.SectorCode)

	if err := validation.ValidateStringNotEmpty(p.Name, "Name"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(p.Name, validation.MaxValuationNameLength, "Name"); err != nil {
		return err
	}
	if err := validation.ValidateStringMaxLength(p.CompanyName, validation.DefaultMaxStringLength, "Company Name"); err != nil {
		return err
	}
	if err := validation.ValidateSectorCode(p.SectorCode); err != nil {
		return err
	}
	if err := validateFinancials(p.Financials); err != nil {
		return err
	}
	if len(p.Years) == 1 {
		return errors.New("validation failed: a valuation needs at least two fiscal years")
	}
	for i := range p.Years {
		y := &p.Years[i]
		if err := validation.ValidateCalendarYear(y.Year, "Year"); err != nil {
			return err
		}
		if err := validation.ValidateNonNegativeNumber(y.Revenue, "Year Revenue"); err != nil {
			return err
		}
		if err := validation.ValidateNonNegativeNumber(y.TotalExpenses, "Year Total Expenses"); err != nil {
			return err
		}
		if err := validation.ValidateNonNegativeNumber(y.PersonalCosts, "Year Personal Costs"); err != nil {
			return err
		}
		if err := validation.ValidateFiniteNumber(y.Ebitda, "Year EBITDA"); err != nil {
			return err
		}
		if err := validation.ValidateFiniteNumber(y.NetIncome, "Year Net Income"); err != nil {
			return err
		}
	}
	return nil
}

func validateFinancials(f models.FinancialData) error {
	if err := validation.ValidateNonNegativeNumber(f.Revenue, "Revenue"); err != nil {
		return err
	}
	if err := validation.ValidateFiniteNumber(f.Ebitda, "EBITDA"); err != nil {
		return err
	}
	if err := validation.ValidateFiniteNumber(f.NetIncome, "Net Income"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeNumber(f.Employees, "Employees"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeNumber(f.Partners, "Partners"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeNumber(f.TotalExpenses, "Total Expenses"); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeNumber(f.PersonalCosts, "Personal Costs"); err != nil {
		return err
	}
	if f.YearFounded != 0 {
		if err := validation.ValidateCalendarYear(f.YearFounded, "Year Founded"); err != nil {
			return err
		}
	}
	return nil
}

// valuationIDFromURL parses the {valuationID} chi route parameter.
func valuationIDFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "valuationID"), 10, 64)
}

func (h *ValuationHandler) CreateValuationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var payload valuationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := payload.validate(); err != nil {
		sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusBadRequest)
		return
	}

	if payload.SectorCode != "" {
		if _, err := h.sectors.GetSector(payload.SectorCode); err != nil {
			sendJSONError(w, "Unknown sector code", http.StatusBadRequest)
			return
		}
	}

	valuation := &models.Valuation{
		UserID:      userID,
		Name:        payload.Name,
		CompanyName: payload.CompanyName,
		SectorCode:  payload.SectorCode,
		Status:      payload.Status,
		Financials:  payload.Financials,
	}
	if valuation.Status == "" {
		valuation.Status = "draft"
	}
	if payload.Methods != nil {
		valuation.Methods = *payload.Methods
	}

	// Yearly figures take precedence over whatever was typed in the
	// financials block.
	valuation.ComputedRevenue, valuation.ComputedEbitda = models.ComputeAggregates(payload.Years)
	if len(payload.Years) == 0 {
		valuation.ComputedRevenue = payload.Financials.Revenue
		valuation.ComputedEbitda = payload.Financials.Ebitda
	}

	if err := models.CreateValuation(database.DB, valuation); err != nil {
		logger.L.Error("Failed to create valuation", "userID", userID, "error", err)
		sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusInternalServerError)
		return
	}

	if len(payload.Years) > 0 {
		if err := models.ReplaceValuationYears(database.DB, valuation.ID, payload.Years); err != nil {
			logger.L.Error("Failed to store valuation years", "valuationID", valuation.ID, "error", err)
			sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusInternalServerError)
			return
		}
	}

	logger.L.Info("Valuation created", "userID", userID, "valuationID", valuation.ID)
	sendJSON(w, http.StatusCreated, valuation)
}

func (h *ValuationHandler) ListValuationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	valuations, err := models.ListValuationsByUser(database.DB, userID)
	if err != nil {
		logger.L.Error("Failed to list valuations", "userID", userID, "error", err)
		sendJSONError(w, "Failed to list valuations", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, valuations)
}

func (h *ValuationHandler) GetValuationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := valuationIDFromURL(r)
	if err != nil {
		sendJSONError(w, "Invalid valuation id", http.StatusBadRequest)
		return
	}

	valuation, err := models.GetValuation(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, models.ErrValuationNotFound) {
			sendJSONError(w, "Valuation not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to get valuation", "valuationID", id, "error", err)
		sendJSONError(w, "Failed to get valuation", http.StatusInternalServerError)
		return
	}

	years, err := models.ListValuationYears(database.DB, valuation.ID)
	if err != nil {
		logger.L.Error("Failed to list valuation years", "valuationID", id, "error", err)
		sendJSONError(w, "Failed to get valuation", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"valuation": valuation,
		"years":     years,
	})
}

func (h *ValuationHandler) UpdateValuationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := valuationIDFromURL(r)
	if err != nil {
		sendJSONError(w, "Invalid valuation id", http.StatusBadRequest)
		return
	}

	valuation, err := models.GetValuation(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, models.ErrValuationNotFound) {
			sendJSONError(w, "Valuation not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load valuation for update", "valuationID", id, "error", err)
		sendJSONError(w, "Failed to update valuation", http.StatusInternalServerError)
		return
	}

	var payload valuationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := payload.validate(); err != nil {
		sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusBadRequest)
		return
	}

	if payload.SectorCode != "" {
		if _, err := h.sectors.GetSector(payload.SectorCode); err != nil {
			sendJSONError(w, "Unknown sector code", http.StatusBadRequest)
			return
		}
	}

	valuation.Name = payload.Name
	valuation.CompanyName = payload.CompanyName
	valuation.SectorCode = payload.SectorCode
	if payload.Status != "" {
		valuation.Status = payload.Status
	}
	if payload.Methods != nil {
		valuation.Methods = *payload.Methods
	}
	valuation.Financials = payload.Financials

	if len(payload.Years) > 0 {
		if err := models.ReplaceValuationYears(database.DB, valuation.ID, payload.Years); err != nil {
			logger.L.Error("Failed to replace valuation years", "valuationID", id, "error", err)
			sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusInternalServerError)
			return
		}
	}

	years, err := models.ListValuationYears(database.DB, valuation.ID)
	if err != nil {
		logger.L.Error("Failed to reload valuation years", "valuationID", id, "error", err)
		sendJSONError(w, "Failed to update valuation", http.StatusInternalServerError)
		return
	}
	valuation.ComputedRevenue, valuation.ComputedEbitda = models.ComputeAggregates(years)
	if len(years) == 0 {
		valuation.ComputedRevenue = payload.Financials.Revenue
		valuation.ComputedEbitda = payload.Financials.Ebitda
	}

	if err := valuation.Update(database.DB); err != nil {
		logger.L.Error("Failed to update valuation", "valuationID", id, "error", err)
		sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusInternalServerError)
		return
	}

	logger.L.Info("Valuation updated", "userID", userID, "valuationID", id)
	sendJSON(w, http.StatusOK, valuation)
}

func (h *ValuationHandler) DeleteValuationHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := valuationIDFromURL(r)
	if err != nil {
		sendJSONError(w, "Invalid valuation id", http.StatusBadRequest)
		return
	}

	if err := models.DeleteValuation(database.DB, id, userID); err != nil {
		if errors.Is(err, models.ErrValuationNotFound) {
			sendJSONError(w, "Valuation not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to delete valuation", "valuationID", id, "error", err)
		sendJSONError(w, "Failed to delete valuation", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Valuation deleted", "userID", userID, "valuationID", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ValuationHandler) ReplaceYearsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	id, err := valuationIDFromURL(r)
	if err != nil {
		sendJSONError(w, "Invalid valuation id", http.StatusBadRequest)
		return
	}

	valuation, err := models.GetValuation(database.DB, id, userID)
	if err != nil {
		if errors.Is(err, models.ErrValuationNotFound) {
			sendJSONError(w, "Valuation not found", http.StatusNotFound)
			return
		}
		logger.L.Error("Failed to load valuation for years replace", "valuationID", id, "error", err)
		sendJSONError(w, "Failed to update valuation years", http.StatusInternalServerError)
		return
	}

	var years []models.ValuationYear
	if err := json.NewDecoder(r.Body).Decode(&years); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(years) < 2 {
		sendJSONError(w, "A valuation needs at least two fiscal years", http.StatusBadRequest)
		return
	}
	for i := range years {
		if err := validation.ValidateCalendarYear(years[i].Year, "Year"); err != nil {
			sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateNonNegativeNumber(years[i].Revenue, "Year Revenue"); err != nil {
			sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateFiniteNumber(years[i].Ebitda, "Year EBITDA"); err != nil {
			sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusBadRequest)
			return
		}
	}

	if err := models.ReplaceValuationYears(database.DB, valuation.ID, years); err != nil {
		logger.L.Error("Failed to replace valuation years", "valuationID", id, "error", err)
		sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusInternalServerError)
		return
	}

	valuation.ComputedRevenue, valuation.ComputedEbitda = models.ComputeAggregates(years)
	if err := valuation.Update(database.DB); err != nil {
		logger.L.Error("Failed to persist recomputed aggregates", "valuationID", id, "error", err)
		sendJSONError(w, "Failed to update valuation years", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"computed_revenue": valuation.ComputedRevenue,
		"computed_ebitda":  valuation.ComputedEbitda,
	})
}

// ComputeValuationHandler runs the engine over the posted figures without
// persisting anything. Saving is a separate explicit call.
func (h *ValuationHandler) ComputeValuationHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := GetUserIDFromContext(r.Context()); !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req struct {
		Financials models.FinancialData     `json:"financials"`
		Methods    *models.ValuationMethods `json:"valuation_methods"`
		SectorCode string                   `json:"sector_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateFinancials(req.Financials); err != nil {
		sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateSectorCode(req.SectorCode); err != nil {
		sendJSONError(w, utils.SanitizeErrorMessage(err), http.StatusBadRequest)
		return
	}

	var sector *models.SectorMultiples
	if code := strings.TrimSpace(req.SectorCode); code != "" {
		var err error
		sector, err = h.sectors.GetSector(code)
		if err != nil {
			sendJSONError(w, "Unknown sector code", http.StatusBadRequest)
			return
		}
	}

	result := h.engine.Compute(req.Financials, req.Methods, sector)
	sendJSON(w, http.StatusOK, result)
}
