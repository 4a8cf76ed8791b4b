// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/dinartools/backend/src/models"
)

// Define common service errors
var (
	// ErrTransport marks a network-level failure: the request never produced a
	// usable HTTP response. Only these failures are retried.
	ErrTransport       = errors.New("market data transport failure")
	ErrIndexOutOfRange = errors.New("position index out of range")
	ErrStoreClosed     = errors.New("market data store is closed")
)

// KVStore is the process-wide string cache shared by every instrument fetch.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// QuoteSource returns the last traded price for a code. found is false when
// the source answered but carried no price.
type QuoteSource interface {
	FetchPrice(ctx context.Context, code string) (price float64, found bool, err error)
}

// DividendSource returns per-event dividend amounts for a code in
// chronological order, restricted to [from, to].
type DividendSource interface {
	FetchDividends(ctx context.Context, code string, from, to time.Time) ([]float64, error)
}

// SalaryWorksheet is the single editable set of compensation inputs.
type SalaryWorksheet interface {
	Snapshot() models.Worksheet
	Calculate() models.SalaryResult
	SetBaseField(field, value string) error
	AddBonus(name string) models.Bonus
	UpdateBonus(id, field, value string) error
	RemoveBonus(id string) error
	AddBenefit(name string, taxable bool) models.Benefit
	UpdateBenefit(id, field, value string) error
	RemoveBenefit(id string) error
	Reset()
}

// PositionStore is the stock position table as seen by the HTTP layer.
type PositionStore interface {
	Positions() []models.StockPosition
	Add(code string) models.StockPosition
	Update(index int, field, value string) error
	Remove(index int) error
	RefreshAll()
}
