package processors

import "github.com/username/dinartools/backend/src/models"

// SalaryProcessor derives the monthly and annual compensation figures.
type SalaryProcessor interface {
	Calculate(base models.BaseSalary, bonuses []models.Bonus, benefits []models.Benefit) (models.SalaryCalculation, models.TotalCalculation)
}

// CashflowProcessor derives the per-row and aggregate pledged-stock figures.
type CashflowProcessor interface {
	Calculate(positions []models.StockPosition) ([]models.PositionCashflow, models.CashflowSummary)
}
