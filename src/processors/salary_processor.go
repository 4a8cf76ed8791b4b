package processors

import (
	"github.com/username/dinartools/backend/src/models"
	"github.com/username/dinartools/backend/src/utils"
)

const (
	// EmployerPensionRate is the statutory employer contribution on the pension tier.
	EmployerPensionRate = 0.06
	monthsPerYear       = 12
)

// salaryProcessorImpl implements the SalaryProcessor interface.
type salaryProcessorImpl struct{}

// NewSalaryProcessor creates a new instance of SalaryProcessor.
func NewSalaryProcessor() SalaryProcessor {
	return &salaryProcessorImpl{}
}

// Calculate is pure: every input is sanitized to a finite number first and
// every output is guaranteed finite.
func (p *salaryProcessorImpl) Calculate(base models.BaseSalary, bonuses []models.Bonus, benefits []models.Benefit) (models.SalaryCalculation, models.TotalCalculation) {
	b := sanitizeBase(base)

	totalSalary := b.BasePay + b.Allowances + b.MealAllowance
	voluntaryPension := b.LaborPensionTier * (b.VoluntaryPensionRate / 100)
	actualSalary := totalSalary - b.LaborInsurance - b.GroupInsurance - b.HealthInsurance - b.WelfareFund - voluntaryPension
	employerPension := b.LaborPensionTier * EmployerPensionRate

	var taxableBenefits, nonTaxableBenefits float64
	for _, bn := range benefits {
		amount := num(bn.Amount)
		if bn.IsTaxable {
			taxableBenefits += amount
		} else {
			nonTaxableBenefits += amount
		}
	}

	var totalBonusAmount, totalTaxWithheld, totalSecondGenNHI float64
	for _, bo := range bonuses {
		totalBonusAmount += num(bo.Amount)
		totalTaxWithheld += num(bo.IncomeTax)
		totalSecondGenNHI += num(bo.SecondGenerationNHI)
	}

	yearlyMealAllowance := b.MealAllowance * monthsPerYear
	yearlyBaseSalary := (b.BasePay + b.Allowances) * monthsPerYear

	totalSalaryIncome := yearlyBaseSalary + totalBonusAmount + taxableBenefits
	totalVoluntaryPension := voluntaryPension * monthsPerYear
	taxableIncome := totalSalaryIncome - totalVoluntaryPension
	netPayment := taxableIncome - totalTaxWithheld
	totalBenefits := taxableBenefits + nonTaxableBenefits
	annualSalary := totalBenefits + yearlyMealAllowance + totalSalaryIncome + totalVoluntaryPension

	benefitsToSalaryRatio := 0.0
	if annualSalary != 0 {
		benefitsToSalaryRatio = totalBenefits / annualSalary * 100
	}

	salary := models.SalaryCalculation{
		TotalSalary:      num(totalSalary),
		ActualSalary:     num(actualSalary),
		VoluntaryPension: num(voluntaryPension),
		EmployerPension:  num(employerPension),
	}
	total := models.TotalCalculation{
		TaxableBenefits:          num(taxableBenefits),
		NonTaxableBenefits:       num(nonTaxableBenefits),
		YearlyMealAllowance:      num(yearlyMealAllowance),
		TotalSalaryIncome:        num(totalSalaryIncome),
		TotalVoluntaryPension:    num(totalVoluntaryPension),
		TaxableIncome:            num(taxableIncome),
		TotalTaxWithheld:         num(totalTaxWithheld),
		NetPayment:               num(netPayment),
		TotalSecondGenerationNHI: num(totalSecondGenNHI),
		AnnualSalary:             num(annualSalary),
		TotalBenefits:            num(totalBenefits),
		BenefitsToSalaryRatio:    num(benefitsToSalaryRatio),
	}
	return salary, total
}

func sanitizeBase(b models.BaseSalary) models.BaseSalary {
	return models.BaseSalary{
		BasePay:              num(b.BasePay),
		Allowances:           num(b.Allowances),
		MealAllowance:        num(b.MealAllowance),
		LaborInsurance:       num(b.LaborInsurance),
		GroupInsurance:       num(b.GroupInsurance),
		HealthInsurance:      num(b.HealthInsurance),
		WelfareFund:          num(b.WelfareFund),
		LaborPensionTier:     num(b.LaborPensionTier),
		VoluntaryPensionRate: num(b.VoluntaryPensionRate),
	}
}

// num is the zero-defaulting finite coercion used at every boundary.
func num(v float64) float64 {
	return utils.ToFiniteNumber(v, 0)
}
