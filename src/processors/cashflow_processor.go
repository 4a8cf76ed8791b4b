package processors

import (
	"github.com/shopspring/decimal"
	"github.com/username/dinartools/backend/src/models"
)

var (
	// PledgeLoanToValue is the fraction of market value a lender extends against pledged shares.
	PledgeLoanToValue = decimal.RequireFromString("0.6")
	pledgeLoanUnit    = decimal.NewFromInt(1000)
)

type cashflowProcessorImpl struct{}

func NewCashflowProcessor() CashflowProcessor {
	return &cashflowProcessorImpl{}
}

// Calculate derives every row from its current fields and sums the columns.
func (p *cashflowProcessorImpl) Calculate(positions []models.StockPosition) ([]models.PositionCashflow, models.CashflowSummary) {
	rows := make([]models.PositionCashflow, 0, len(positions))
	var summary models.CashflowSummary
	for _, s := range positions {
		row := PositionFigures(s)
		rows = append(rows, row)
		summary.MarketValue += row.MarketValue
		summary.AnnualDividend += row.AnnualDividend
		summary.PledgeLoan += row.PledgeLoan
		summary.PledgeInterest += row.PledgeInterest
		summary.NetCashflow += row.NetCashflow
	}
	summary.MarketValue = num(summary.MarketValue)
	summary.AnnualDividend = num(summary.AnnualDividend)
	summary.PledgeLoan = num(summary.PledgeLoan)
	summary.PledgeInterest = num(summary.PledgeInterest)
	summary.NetCashflow = num(summary.NetCashflow)
	return rows, summary
}

// PositionFigures computes the derived figures of a single row.
func PositionFigures(s models.StockPosition) models.PositionCashflow {
	price := num(s.Price)
	shares := num(s.Shares)
	pledged := num(s.PledgedShares)
	rate := num(s.PledgeRate)

	marketValue := num(price * shares)
	annualDividend := num(num(s.LastDividend) * num(s.Frequency) * shares)
	yieldRate := 0.0
	if marketValue != 0 {
		yieldRate = num(annualDividend / marketValue * 100)
	}
	pledgeLoan := PledgeLoan(price, pledged)
	pledgeInterest := num(pledgeLoan * (rate / 100))

	return models.PositionCashflow{
		ID:             s.ID,
		StockCode:      s.StockCode,
		MarketValue:    marketValue,
		AnnualDividend: annualDividend,
		YieldRate:      yieldRate,
		PledgeLoan:     pledgeLoan,
		PledgeInterest: pledgeInterest,
		NetCashflow:    num(annualDividend - pledgeInterest),
	}
}

// PledgeLoan is floor(price × pledgedShares × 0.6 / 1000) × 1000, computed in
// decimal so values sitting exactly on a thousand are not floored away.
func PledgeLoan(price, pledgedShares float64) float64 {
	loan := decimal.NewFromFloat(num(price)).
		Mul(decimal.NewFromFloat(num(pledgedShares))).
		Mul(PledgeLoanToValue).
		Div(pledgeLoanUnit).
		Floor().
		Mul(pledgeLoanUnit)
	return num(loan.InexactFloat64())
}
