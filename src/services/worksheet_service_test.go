package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/dinartools/backend/src/models"
	"github.com/username/dinartools/backend/src/processors"
	"github.com/username/dinartools/backend/src/security/validation"
)

func TestWorksheetService_EditAndCalculate(t *testing.T) {
	svc := NewWorksheetService(processors.NewSalaryProcessor())

	before := svc.Calculate()
	assert.Greater(t, before.Total.AnnualSalary, 0.0)

	require.NoError(t, svc.SetBaseField("basePay", "50000"))
	after := svc.Calculate()
	assert.InDelta(t, before.Salary.TotalSalary+8000, after.Salary.TotalSalary, 1e-9)

	b := svc.AddBonus("<i>Spring</i> bonus")
	assert.Equal(t, "Spring bonus", b.Name)
	require.NoError(t, svc.UpdateBonus(b.ID, "amount", "10000"))
	assert.InDelta(t, after.Total.TotalSalaryIncome+10000, svc.Calculate().Total.TotalSalaryIncome, 1e-9)

	benefit := svc.AddBenefit("Gym", true)
	require.NoError(t, svc.UpdateBenefit(benefit.ID, "amount", "1200"))
	require.NoError(t, svc.UpdateBenefit(benefit.ID, "name", "  Gym <b>card</b> "))
	ws := svc.Snapshot()
	require.Len(t, ws.Benefits, 3)
	assert.Equal(t, "Gym card", ws.Benefits[2].Name)
	assert.True(t, ws.Benefits[2].IsTaxable)

	require.NoError(t, svc.RemoveBenefit(benefit.ID))
	require.NoError(t, svc.RemoveBonus(b.ID))
	assert.ErrorIs(t, svc.RemoveBonus(b.ID), models.ErrNotFound)
	assert.ErrorIs(t, svc.UpdateBenefit("nope", "amount", "1"), models.ErrNotFound)
	assert.ErrorIs(t, svc.SetBaseField("salary", "1"), models.ErrUnknownField)
}

func TestWorksheetService_RejectsOverlongNames(t *testing.T) {
	svc := NewWorksheetService(processors.NewSalaryProcessor())
	long := make([]rune, validation.MaxNameLength+1)
	for i := range long {
		long[i] = '獎'
	}
	err := svc.UpdateBonus("1", "name", string(long))
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
}

func TestWorksheetService_SnapshotIsIsolated(t *testing.T) {
	svc := NewWorksheetService(processors.NewSalaryProcessor())
	ws := svc.Snapshot()
	ws.Bonuses[0].Amount = 1

	assert.Equal(t, 200000.0, svc.Snapshot().Bonuses[0].Amount)

	require.NoError(t, svc.UpdateBonus("1", "amount", "5"))
	svc.Reset()
	assert.Equal(t, models.DefaultWorksheet(), svc.Snapshot())
}
