package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBonusLifecycle(t *testing.T) {
	list := DefaultWorksheet().Bonuses
	require.Len(t, list, 2)

	b := NewBonus("三節獎金")
	assert.NotEmpty(t, b.ID)
	list = AddBonus(list, b)
	require.Len(t, list, 3)

	list, err := UpdateBonus(list, b.ID, "amount", "12000")
	require.NoError(t, err)
	list, err = UpdateBonus(list, b.ID, "incomeTax", "not-a-number")
	require.NoError(t, err)
	list, err = UpdateBonus(list, b.ID, "name", "中秋獎金")
	require.NoError(t, err)

	assert.Equal(t, 12000.0, list[2].Amount)
	assert.Equal(t, 0.0, list[2].IncomeTax)
	assert.Equal(t, "中秋獎金", list[2].Name)

	list, err = RemoveBonus(list, b.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = RemoveBonus(list, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = UpdateBonus(list, "1", "colour", "red")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestUpdateBonus_DoesNotMutateInput(t *testing.T) {
	orig := DefaultWorksheet().Bonuses
	updated, err := UpdateBonus(orig, "1", "amount", "1")
	require.NoError(t, err)

	assert.Equal(t, 200000.0, orig[0].Amount)
	assert.Equal(t, 1.0, updated[0].Amount)
}

func TestBenefitLifecycle(t *testing.T) {
	list := AddBenefit(nil, NewBenefit("健檢"))
	id := list[0].ID
	assert.False(t, list[0].IsTaxable)

	for _, tc := range []struct {
		value string
		want  bool
	}{{"true", true}, {"on", true}, {"0", false}, {"garbage", false}, {"1", true}} {
		var err error
		list, err = UpdateBenefit(list, id, "isTaxable", tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.want, list[0].IsTaxable, tc.value)
	}

	list, err := UpdateBenefit(list, id, "amount", "3000.5")
	require.NoError(t, err)
	assert.Equal(t, 3000.5, list[0].Amount)

	_, err = UpdateBenefit(list, "missing", "amount", "1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err = RemoveBenefit(list, id)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSetBaseField(t *testing.T) {
	b, err := SetBaseField(BaseSalary{}, "basePay", "42000")
	require.NoError(t, err)
	assert.Equal(t, 42000.0, b.BasePay)

	b, err = SetBaseField(b, "voluntaryPensionRate", "")
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.VoluntaryPensionRate)

	b, err = SetBaseField(b, "voluntaryPensionRate", "9")
	require.NoError(t, err)
	assert.Equal(t, 6.0, b.VoluntaryPensionRate)

	b, err = SetBaseField(b, "voluntaryPensionRate", "-2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, b.VoluntaryPensionRate)

	_, err = SetBaseField(b, "bogus", "1")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestWorksheetClone(t *testing.T) {
	w := DefaultWorksheet()
	c := w.Clone()
	c.Bonuses[0].Amount = 1
	assert.Equal(t, 200000.0, w.Bonuses[0].Amount)
}
