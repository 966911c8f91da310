package model

import (
	"fmt"
	"math"
	"strings"
)

// ReportRequest is the payload of the generate report endpoint
// salaries are pointers to distinguish a missing value from zero
type ReportRequest struct {
	ResumeFilePath string   `json:"resumeFilePath"`
	MinSalary      *float64 `json:"min_salary"`
	MaxSalary      *float64 `json:"max_salary"`
}

func (r ReportRequest) Validate() error {
	if strings.TrimSpace(r.ResumeFilePath) == "" {
		return NewPipelineError(ValidationError, "resumeFilePath is required", nil)
	}

	if r.MinSalary == nil || r.MaxSalary == nil {
		return NewPipelineError(ValidationError, "Both min_salary and max_salary are required", nil)
	}

	return r.Band().Validate()
}

// Band must only be called after Validate
func (r ReportRequest) Band() SalaryBand {
	return SalaryBand{Min: *r.MinSalary, Max: *r.MaxSalary}
}

type SalaryBand struct {
	Min float64
	Max float64
}

func (b SalaryBand) Validate() error {
	if !isFinite(b.Min) || !isFinite(b.Max) {
		return NewPipelineError(ValidationError, "min_salary and max_salary must be numbers", nil)
	}

	if b.Min >= b.Max {
		return NewPipelineError(ValidationError, "min_salary must be less than max_salary", nil)
	}

	return nil
}

func (b SalaryBand) String() string {
	return fmt.Sprintf("%g - %g", b.Min, b.Max)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
