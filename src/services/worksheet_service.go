// backend/src/services/worksheet_service.go
package services

import (
	"fmt"
	"sync"

	"github.com/username/dinartools/backend/src/models"
	"github.com/username/dinartools/backend/src/processors"
	"github.com/username/dinartools/backend/src/security/validation"
)

type worksheetServiceImpl struct {
	mu        sync.RWMutex
	ws        models.Worksheet
	processor processors.SalaryProcessor
}

// NewWorksheetService returns a worksheet seeded with the default sample inputs.
func NewWorksheetService(processor processors.SalaryProcessor) SalaryWorksheet {
	return &worksheetServiceImpl{
		ws:        models.DefaultWorksheet(),
		processor: processor,
	}
}

func (s *worksheetServiceImpl) Snapshot() models.Worksheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ws.Clone()
}

// Calculate runs the salary calculation over the current inputs.
func (s *worksheetServiceImpl) Calculate() models.SalaryResult {
	ws := s.Snapshot()
	salary, total := s.processor.Calculate(ws.Base, ws.Bonuses, ws.Benefits)
	return models.SalaryResult{Salary: salary, Total: total}
}

func (s *worksheetServiceImpl) SetBaseField(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := models.SetBaseField(s.ws.Base, field, value)
	if err != nil {
		return err
	}
	s.ws.Base = b
	return nil
}

func (s *worksheetServiceImpl) AddBonus(name string) models.Bonus {
	b := models.NewBonus(cleanOrEmpty(name))
	s.mu.Lock()
	s.ws.Bonuses = models.AddBonus(s.ws.Bonuses, b)
	s.mu.Unlock()
	return b
}

func (s *worksheetServiceImpl) UpdateBonus(id, field, value string) error {
	value, err := cleanFieldValue(field, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := models.UpdateBonus(s.ws.Bonuses, id, field, value)
	if err != nil {
		return err
	}
	s.ws.Bonuses = list
	return nil
}

func (s *worksheetServiceImpl) RemoveBonus(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := models.RemoveBonus(s.ws.Bonuses, id)
	if err != nil {
		return err
	}
	s.ws.Bonuses = list
	return nil
}

func (s *worksheetServiceImpl) AddBenefit(name string, taxable bool) models.Benefit {
	b := models.NewBenefit(cleanOrEmpty(name))
	b.IsTaxable = taxable
	s.mu.Lock()
	s.ws.Benefits = models.AddBenefit(s.ws.Benefits, b)
	s.mu.Unlock()
	return b
}

func (s *worksheetServiceImpl) UpdateBenefit(id, field, value string) error {
	value, err := cleanFieldValue(field, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := models.UpdateBenefit(s.ws.Benefits, id, field, value)
	if err != nil {
		return err
	}
	s.ws.Benefits = list
	return nil
}

func (s *worksheetServiceImpl) RemoveBenefit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, err := models.RemoveBenefit(s.ws.Benefits, id)
	if err != nil {
		return err
	}
	s.ws.Benefits = list
	return nil
}

// Reset restores the default sample inputs.
func (s *worksheetServiceImpl) Reset() {
	s.mu.Lock()
	s.ws = models.DefaultWorksheet()
	s.mu.Unlock()
}

func cleanFieldValue(field, value string) (string, error) {
	if field != "name" {
		return value, nil
	}
	cleaned, err := validation.CleanName(value)
	if err != nil {
		return "", fmt.Errorf("clean name: %w", err)
	}
	return cleaned, nil
}

func cleanOrEmpty(name string) string {
	cleaned, err := validation.CleanName(name)
	if err != nil {
		return ""
	}
	return cleaned
}
