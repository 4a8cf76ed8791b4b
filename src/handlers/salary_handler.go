// backend/src/handlers/salary_handler.go
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/dinartools/backend/src/logger"
	"github.com/username/dinartools/backend/src/models"
	"github.com/username/dinartools/backend/src/processors"
	"github.com/username/dinartools/backend/src/services"
	"github.com/username/dinartools/backend/src/utils"
)

type SalaryHandler struct {
	worksheet services.SalaryWorksheet
	processor processors.SalaryProcessor
}

func NewSalaryHandler(worksheet services.SalaryWorksheet, processor processors.SalaryProcessor) *SalaryHandler {
	return &SalaryHandler{worksheet: worksheet, processor: processor}
}

type worksheetResponse struct {
	Worksheet models.Worksheet    `json:"worksheet"`
	Result    models.SalaryResult `json:"result"`
}

type calculateRequest struct {
	Base struct {
		BasePay              utils.Number `json:"basePay"`
		Allowances           utils.Number `json:"allowances"`
		MealAllowance        utils.Number `json:"mealAllowance"`
		LaborInsurance       utils.Number `json:"laborInsurance"`
		GroupInsurance       utils.Number `json:"groupInsurance"`
		HealthInsurance      utils.Number `json:"healthInsurance"`
		WelfareFund          utils.Number `json:"welfareFund"`
		LaborPensionTier     utils.Number `json:"laborPensionTier"`
		VoluntaryPensionRate utils.Number `json:"voluntaryPensionRate"`
	} `json:"base"`
	Bonuses []struct {
		Amount              utils.Number `json:"amount"`
		IncomeTax           utils.Number `json:"incomeTax"`
		SecondGenerationNHI utils.Number `json:"secondGenerationNHI"`
	} `json:"bonuses"`
	Benefits []struct {
		Amount    utils.Number `json:"amount"`
		IsTaxable bool         `json:"isTaxable"`
	} `json:"benefits"`
}

func (req calculateRequest) inputs() (models.BaseSalary, []models.Bonus, []models.Benefit) {
	b := req.Base
	base := models.BaseSalary{
		BasePay:              b.BasePay.Float64(),
		Allowances:           b.Allowances.Float64(),
		MealAllowance:        b.MealAllowance.Float64(),
		LaborInsurance:       b.LaborInsurance.Float64(),
		GroupInsurance:       b.GroupInsurance.Float64(),
		HealthInsurance:      b.HealthInsurance.Float64(),
		WelfareFund:          b.WelfareFund.Float64(),
		LaborPensionTier:     b.LaborPensionTier.Float64(),
		VoluntaryPensionRate: utils.Clamp(b.VoluntaryPensionRate.Float64(), 0, models.MaxVoluntaryPensionRate),
	}
	bonuses := make([]models.Bonus, 0, len(req.Bonuses))
	for _, bo := range req.Bonuses {
		bonuses = append(bonuses, models.Bonus{
			Amount:              bo.Amount.Float64(),
			IncomeTax:           bo.IncomeTax.Float64(),
			SecondGenerationNHI: bo.SecondGenerationNHI.Float64(),
		})
	}
	benefits := make([]models.Benefit, 0, len(req.Benefits))
	for _, bn := range req.Benefits {
		benefits = append(benefits, models.Benefit{Amount: bn.Amount.Float64(), IsTaxable: bn.IsTaxable})
	}
	return base, bonuses, benefits
}

// HandleCalculate runs the calculation over inputs supplied in the body,
// without touching the stored worksheet.
func (h *SalaryHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	salary, total := h.processor.Calculate(req.inputs())
	utils.SendJSON(w, http.StatusOK, models.SalaryResult{Salary: salary, Total: total})
}

func (h *SalaryHandler) HandleGetWorksheet(w http.ResponseWriter, r *http.Request) {
	h.sendWorksheet(w, http.StatusOK)
}

func (h *SalaryHandler) HandlePatchBase(w http.ResponseWriter, r *http.Request) {
	p, err := decodeFieldPatch(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.worksheet.SetBaseField(p.Field, string(p.Value)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendWorksheet(w, http.StatusOK)
}

func (h *SalaryHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.worksheet.Reset()
	logger.InfoFromContext(r.Context(), "Worksheet reset to defaults")
	h.sendWorksheet(w, http.StatusOK)
}

type newItemRequest struct {
	Name      string `json:"name"`
	IsTaxable bool   `json:"isTaxable"`
}

func (h *SalaryHandler) HandleAddBonus(w http.ResponseWriter, r *http.Request) {
	var req newItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, h.worksheet.AddBonus(req.Name))
}

func (h *SalaryHandler) HandleUpdateBonus(w http.ResponseWriter, r *http.Request) {
	p, err := decodeFieldPatch(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.worksheet.UpdateBonus(chi.URLParam(r, "id"), p.Field, string(p.Value)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendWorksheet(w, http.StatusOK)
}

func (h *SalaryHandler) HandleRemoveBonus(w http.ResponseWriter, r *http.Request) {
	if err := h.worksheet.RemoveBonus(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendWorksheet(w, http.StatusOK)
}

func (h *SalaryHandler) HandleAddBenefit(w http.ResponseWriter, r *http.Request) {
	var req newItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, h.worksheet.AddBenefit(req.Name, req.IsTaxable))
}

func (h *SalaryHandler) HandleUpdateBenefit(w http.ResponseWriter, r *http.Request) {
	p, err := decodeFieldPatch(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.worksheet.UpdateBenefit(chi.URLParam(r, "id"), p.Field, string(p.Value)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendWorksheet(w, http.StatusOK)
}

func (h *SalaryHandler) HandleRemoveBenefit(w http.ResponseWriter, r *http.Request) {
	if err := h.worksheet.RemoveBenefit(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.sendWorksheet(w, http.StatusOK)
}

// sendWorksheet computes the result from the same snapshot it returns.
func (h *SalaryHandler) sendWorksheet(w http.ResponseWriter, status int) {
	ws := h.worksheet.Snapshot()
	salary, total := h.processor.Calculate(ws.Base, ws.Bonuses, ws.Benefits)
	utils.SendJSON(w, status, worksheetResponse{
		Worksheet: ws,
		Result:    models.SalaryResult{Salary: salary, Total: total},
	})
}
