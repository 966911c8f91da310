package model

import (
	"strings"
	"time"
)

// ExtractedDocument is the text layer of a PDF, with link annotations appended as extra lines
type ExtractedDocument struct {
	Text  string
	Links []string
}

func (d ExtractedDocument) IsEmpty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// ReportInput contains every upstream artifact needed to render a report
type ReportInput struct {
	Username    string
	GeneratedAt time.Time
	Statistics  SummaryStatistics

	AllSkills      []SkillCount
	AllLanguages   LanguageByteMap
	OwnedSkills    []SkillCount
	OwnedLanguages LanguageByteMap

	Band          SalaryBand
	Rating        float64
	Salary        float64
	OverallRating float64
}

// Report is the rendered document, immutable once serialized
type Report struct {
	Username     string
	Filename     string
	RelativePath string
	Content      []byte
	Pages        int
}
