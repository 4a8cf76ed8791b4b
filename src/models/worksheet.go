package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/username/dinartools/backend/src/utils"
)

var (
	ErrNotFound     = errors.New("item not found")
	ErrUnknownField = errors.New("unknown field")
)

// Worksheet is the full set of compensation inputs.
type Worksheet struct {
	Base     BaseSalary `json:"base"`
	Bonuses  []Bonus    `json:"bonuses"`
	Benefits []Benefit  `json:"benefits"`
}

// DefaultWorksheet returns the sample figures a fresh worksheet starts with.
func DefaultWorksheet() Worksheet {
	return Worksheet{
		Base: BaseSalary{
			BasePay:              42000,
			Allowances:           2200,
			MealAllowance:        3000,
			LaborInsurance:       550,
			GroupInsurance:       0,
			HealthInsurance:      622,
			WelfareFund:          285,
			LaborPensionTier:     46000,
			VoluntaryPensionRate: 6,
		},
		Bonuses: []Bonus{
			{ID: "1", Name: "年度年終績效獎金", Amount: 200000},
			{ID: "2", Name: "獎金1", Amount: 61000, SecondGenerationNHI: 1287},
		},
		Benefits: []Benefit{
			{ID: "1", Name: "尾牙抽獎禮券", Amount: 8000, IsTaxable: true},
			{ID: "2", Name: "個人旅遊補助", Amount: 20000, IsTaxable: false},
		},
	}
}

// Clone returns a deep copy so callers can't alias the collections.
func (w Worksheet) Clone() Worksheet {
	out := w
	out.Bonuses = append([]Bonus(nil), w.Bonuses...)
	out.Benefits = append([]Benefit(nil), w.Benefits...)
	return out
}

// MaxVoluntaryPensionRate is the statutory ceiling for the employee's own
// pension contribution, in percent.
const MaxVoluntaryPensionRate = 6

// SetBaseField sets one numeric field of the base salary from user text.
func SetBaseField(b BaseSalary, field, value string) (BaseSalary, error) {
	v := utils.ParseNumber(value)
	switch field {
	case "basePay":
		b.BasePay = v
	case "allowances":
		b.Allowances = v
	case "mealAllowance":
		b.MealAllowance = v
	case "laborInsurance":
		b.LaborInsurance = v
	case "groupInsurance":
		b.GroupInsurance = v
	case "healthInsurance":
		b.HealthInsurance = v
	case "welfareFund":
		b.WelfareFund = v
	case "laborPensionTier":
		b.LaborPensionTier = v
	case "voluntaryPensionRate":
		b.VoluntaryPensionRate = utils.Clamp(v, 0, MaxVoluntaryPensionRate)
	default:
		return b, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return b, nil
}

// NewBonus creates an empty bonus with a fresh id.
func NewBonus(name string) Bonus {
	return Bonus{ID: uuid.NewString(), Name: name}
}

// AddBonus appends b and returns the new collection.
func AddBonus(list []Bonus, b Bonus) []Bonus {
	out := make([]Bonus, 0, len(list)+1)
	out = append(out, list...)
	return append(out, b)
}

// RemoveBonus drops the bonus with the given id.
func RemoveBonus(list []Bonus, id string) ([]Bonus, error) {
	out := make([]Bonus, 0, len(list))
	found := false
	for _, b := range list {
		if b.ID == id {
			found = true
			continue
		}
		out = append(out, b)
	}
	if !found {
		return list, fmt.Errorf("bonus %s: %w", id, ErrNotFound)
	}
	return out, nil
}

// UpdateBonus sets one field of the bonus with the given id. Numeric fields
// are parsed leniently; anything unparsable becomes 0.
func UpdateBonus(list []Bonus, id, field, value string) ([]Bonus, error) {
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return list, fmt.Errorf("bonus %s: %w", id, ErrNotFound)
	}
	b := list[idx]
	switch field {
	case "name":
		b.Name = value
	case "amount":
		b.Amount = utils.ParseNumber(value)
	case "incomeTax":
		b.IncomeTax = utils.ParseNumber(value)
	case "secondGenerationNHI":
		b.SecondGenerationNHI = utils.ParseNumber(value)
	default:
		return list, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	out := append([]Bonus(nil), list...)
	out[idx] = b
	return out, nil
}

// NewBenefit creates an empty, tax-exempt benefit with a fresh id.
func NewBenefit(name string) Benefit {
	return Benefit{ID: uuid.NewString(), Name: name}
}

func AddBenefit(list []Benefit, b Benefit) []Benefit {
	out := make([]Benefit, 0, len(list)+1)
	out = append(out, list...)
	return append(out, b)
}

func RemoveBenefit(list []Benefit, id string) ([]Benefit, error) {
	out := make([]Benefit, 0, len(list))
	found := false
	for _, b := range list {
		if b.ID == id {
			found = true
			continue
		}
		out = append(out, b)
	}
	if !found {
		return list, fmt.Errorf("benefit %s: %w", id, ErrNotFound)
	}
	return out, nil
}

// UpdateBenefit sets one field of the benefit with the given id.
func UpdateBenefit(list []Benefit, id, field, value string) ([]Benefit, error) {
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return list, fmt.Errorf("benefit %s: %w", id, ErrNotFound)
	}
	b := list[idx]
	switch field {
	case "name":
		b.Name = value
	case "amount":
		b.Amount = utils.ParseNumber(value)
	case "isTaxable":
		b.IsTaxable = parseFlag(value)
	default:
		return list, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	out := append([]Benefit(nil), list...)
	out[idx] = b
	return out, nil
}

// parseFlag accepts the usual boolean spellings plus "on" from checkboxes.
func parseFlag(s string) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "on" || s == "yes" {
		return true
	}
	v, err := strconv.ParseBool(s)
	return err == nil && v
}
