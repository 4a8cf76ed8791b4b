// backend/src/handlers/stock_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/username/dinartools/backend/src/logger"
	"github.com/username/dinartools/backend/src/models"
	"github.com/username/dinartools/backend/src/processors"
	"github.com/username/dinartools/backend/src/security/validation"
	"github.com/username/dinartools/backend/src/services"
	"github.com/username/dinartools/backend/src/utils"
)

type StockHandler struct {
	store     services.PositionStore
	processor processors.CashflowProcessor
}

func NewStockHandler(store services.PositionStore, processor processors.CashflowProcessor) *StockHandler {
	return &StockHandler{store: store, processor: processor}
}

type stocksResponse struct {
	Positions []models.StockPosition    `json:"positions"`
	Cashflows []models.PositionCashflow `json:"cashflows"`
	Summary   models.CashflowSummary    `json:"summary"`
}

type addStockRequest struct {
	StockCode string `json:"stockCode"`
}

func (h *StockHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.sendPositions(w, http.StatusOK)
}

func (h *StockHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := validation.ValidateStockCode(req.StockCode); err != nil {
		writeServiceError(w, r, err)
		return
	}
	p := h.store.Add(req.StockCode)
	logger.InfoFromContext(r.Context(), "Stock position added", "id", p.ID, "code", p.StockCode)
	utils.SendJSON(w, http.StatusCreated, p)
}

func (h *StockHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	p, err := decodeFieldPatch(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.store.Update(index, p.Field, string(p.Value)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendPositions(w, http.StatusOK)
}

func (h *StockHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.store.Remove(index); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendPositions(w, http.StatusOK)
}

// HandleRefresh schedules a sync for every tracked code and returns at once.
func (h *StockHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	h.store.RefreshAll()
	h.sendPositions(w, http.StatusAccepted)
}

func (h *StockHandler) sendPositions(w http.ResponseWriter, status int) {
	positions := h.store.Positions()
	cashflows, summary := h.processor.Calculate(positions)
	utils.SendJSON(w, status, stocksResponse{Positions: positions, Cashflows: cashflows, Summary: summary})
}

func indexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q is not an integer", validation.ErrValidationFailed, raw)
	}
	return index, nil
}
