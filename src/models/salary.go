package models

// BaseSalary is the monthly pay slip entered by the user.
type BaseSalary struct {
	BasePay              float64 `json:"basePay"`              // taxable base pay
	Allowances           float64 `json:"allowances"`           // taxable transport/overtime/other allowances
	MealAllowance        float64 `json:"mealAllowance"`        // tax-exempt meal allowance
	LaborInsurance       float64 `json:"laborInsurance"`       // labor insurance deduction
	GroupInsurance       float64 `json:"groupInsurance"`       // group insurance deduction
	HealthInsurance      float64 `json:"healthInsurance"`      // health insurance deduction
	WelfareFund          float64 `json:"welfareFund"`          // welfare fund deduction
	LaborPensionTier     float64 `json:"laborPensionTier"`     // regulated pension bracket amount
	VoluntaryPensionRate float64 `json:"voluntaryPensionRate"` // voluntary contribution, percent 0-6
}

// Bonus is a one-off payment with its withholdings.
type Bonus struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Amount              float64 `json:"amount"`
	IncomeTax           float64 `json:"incomeTax"`           // withheld income tax
	SecondGenerationNHI float64 `json:"secondGenerationNHI"` // withheld supplementary NHI levy
}

// Benefit is a non-salary perk, taxable or not.
type Benefit struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	IsTaxable bool    `json:"isTaxable"`
}

// SalaryCalculation holds the monthly derived figures.
type SalaryCalculation struct {
	TotalSalary      float64 `json:"totalSalary"`      // gross monthly pay
	ActualSalary     float64 `json:"actualSalary"`     // take-home pay after deductions
	VoluntaryPension float64 `json:"voluntaryPension"` // employee voluntary contribution
	EmployerPension  float64 `json:"employerPension"`  // statutory employer contribution
}

// TotalCalculation holds the annual aggregates.
type TotalCalculation struct {
	TaxableBenefits          float64 `json:"taxableBenefits"`
	NonTaxableBenefits       float64 `json:"nonTaxableBenefits"`
	YearlyMealAllowance      float64 `json:"yearlyMealAllowance"`
	TotalSalaryIncome        float64 `json:"totalSalaryIncome"`     // salary + bonuses + taxable benefits
	TotalVoluntaryPension    float64 `json:"totalVoluntaryPension"`
	TaxableIncome            float64 `json:"taxableIncome"`         // as reported on the withholding statement
	TotalTaxWithheld         float64 `json:"totalTaxWithheld"`
	NetPayment               float64 `json:"netPayment"`
	TotalSecondGenerationNHI float64 `json:"totalSecondGenerationNHI"`
	AnnualSalary             float64 `json:"annualSalary"`          // salary, meals, voluntary pension and benefits
	TotalBenefits            float64 `json:"totalBenefits"`
	BenefitsToSalaryRatio    float64 `json:"benefitsToSalaryRatio"` // percent of annual salary
}

// SalaryResult pairs both derived records.
type SalaryResult struct {
	Salary SalaryCalculation `json:"salary"`
	Total  TotalCalculation  `json:"total"`
}
