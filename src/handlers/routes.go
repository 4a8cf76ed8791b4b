package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/username/dinartools/backend/src/logger"
	"github.com/username/dinartools/backend/src/models"
	"github.com/username/dinartools/backend/src/security/validation"
	"github.com/username/dinartools/backend/src/services"
	"github.com/username/dinartools/backend/src/utils"
)

const maxBodyBytes = 1 << 20

// RegisterRoutes mounts the worksheet and stock position endpoints under /api.
func RegisterRoutes(r chi.Router, salary *SalaryHandler, stocks *StockHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/salary", func(r chi.Router) {
			r.Get("/", salary.HandleGetWorksheet)
			r.Post("/calculate", salary.HandleCalculate)
			r.Patch("/base", salary.HandlePatchBase)
			r.Post("/reset", salary.HandleReset)

			r.Post("/bonuses", salary.HandleAddBonus)
			r.Patch("/bonuses/{id}", salary.HandleUpdateBonus)
			r.Delete("/bonuses/{id}", salary.HandleRemoveBonus)

			r.Post("/benefits", salary.HandleAddBenefit)
			r.Patch("/benefits/{id}", salary.HandleUpdateBenefit)
			r.Delete("/benefits/{id}", salary.HandleRemoveBenefit)
		})

		r.Route("/stocks", func(r chi.Router) {
			r.Get("/", stocks.HandleList)
			r.Post("/", stocks.HandleAdd)
			r.Post("/refresh", stocks.HandleRefresh)
			r.Patch("/{index}", stocks.HandleUpdate)
			r.Delete("/{index}", stocks.HandleRemove)
		})
	})
}

// patchValue accepts a JSON string, number, bool or null and keeps its text form.
type patchValue string

func (v *patchValue) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*v = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = patchValue(s)
		return nil
	}
	*v = patchValue(raw)
	return nil
}

type fieldPatch struct {
	Field string     `json:"field"`
	Value patchValue `json:"value"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", validation.ErrValidationFailed, err)
	}
	return nil
}

func decodeFieldPatch(w http.ResponseWriter, r *http.Request) (fieldPatch, error) {
	var p fieldPatch
	if err := decodeJSON(w, r, &p); err != nil {
		return p, err
	}
	if err := validation.ValidateFieldPatch(p.Field, string(p.Value)); err != nil {
		return p, err
	}
	return p, nil
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, services.ErrIndexOutOfRange):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrUnknownField), errors.Is(err, validation.ErrValidationFailed):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		msg := "internal server error"
		if id, ok := GetRequestIDFromContext(r.Context()); ok {
			msg += " (request " + id + ")"
		}
		utils.SendJSONError(w, msg, http.StatusInternalServerError)
	}
}
