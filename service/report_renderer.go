package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/Scalingo/sclng-developer-report/model"
	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// layout units are millimeters on an A4 page
const (
	barWidth        = 160.0
	barHeight       = 12.0
	barLabelWidth   = 30.0
	barPadding      = 5.0  // free space required under a bar before drawing it
	barLabelPadding = 10.0 // label is drawn inside the fill only if it fits with this padding
	barSpacing      = 1.0

	lineHeight        = 8.0
	sectionSpacing    = 5.0
	pageBottomMargin  = 20.0
	reportTitle       = "Developer Report"
	fontFamily        = "Helvetica"
	noDataLine        = "No data available."
	generatedAtLayout = "2006-01-02 15:04:05"
)

type rgb struct{ r, g, b int }

var (
	titleColor       = rgb{50, 50, 50}
	footerColor      = rgb{128, 128, 128}
	sectionFillColor = rgb{0, 102, 204}
	trackColor       = rgb{240, 240, 240}
	fillColor        = rgb{41, 128, 185}
	lightText        = rgb{255, 255, 255}
	darkText         = rgb{0, 0, 0}
)

// canvas is the subset of *fpdf.Fpdf used by the layout
type canvas interface {
	AddPage()
	PageNo() int
	GetPageSize() (float64, float64)
	GetMargins() (float64, float64, float64, float64)
	GetY() float64
	SetXY(x, y float64)
	Ln(h float64)
	SetFont(familyStr, styleStr string, size float64)
	SetTextColor(r, g, b int)
	SetFillColor(r, g, b int)
	CellFormat(w, h float64, txtStr, borderStr string, ln int, alignStr string, fill bool, link int, linkStr string)
	Rect(x, y, w, h float64, styleStr string)
	GetStringWidth(s string) float64
}

type ReportRenderer interface {
	Render(input model.ReportInput) (*model.Report, error)
}

type reportRenderer struct {
	brandName string
}

func NewReportRenderer(cfg config.Config) ReportRenderer {
	return reportRenderer{brandName: cfg.Reports.BrandName}
}

// Render lays out the whole report in one pass and serialize it
func (r reportRenderer) Render(input model.ReportInput) (*model.Report, error) {
	pdf := r.newDocument(input)
	r.layout(pdf, input)

	if err := pdf.Error(); err != nil {
		log.WithError(err).Error("unable to layout report")
		return nil, model.NewPipelineError(model.RenderError, "unable to render report", err)
	}

	pages := pdf.PageCount()

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		log.WithError(err).Error("unable to serialize report")
		return nil, model.NewPipelineError(model.RenderError, "unable to render report", err)
	}

	report := &model.Report{
		Username: input.Username,
		Filename: ReportFilename(input.Username),
		Content:  buf.Bytes(),
		Pages:    pages,
	}

	log.WithFields(log.Fields{
		"filename": report.Filename,
		"pages":    report.Pages,
		"size":     len(report.Content),
	}).Debug("report rendered")

	return report, nil
}

// ReportFilename returns report_<username>_<8 random hex>.pdf
func ReportFilename(username string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("report_%s_%s.pdf", username, random[:8])
}

func (r reportRenderer) newDocument(input model.ReportInput) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(reportTitle+" - "+input.Username, false)
	pdf.SetCreator(userAgent, false)
	pdf.SetCreationDate(input.GeneratedAt)
	pdf.SetAutoPageBreak(true, pageBottomMargin)

	pdf.SetHeaderFunc(func() {
		pdf.SetFont(fontFamily, "B", 16)
		pdf.SetTextColor(titleColor.r, titleColor.g, titleColor.b)
		pdf.CellFormat(0, 10, reportTitle, "", 1, "C", false, 0, "")
		pdf.Ln(15)
	})

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(footerColor.r, footerColor.g, footerColor.b)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d | %s", pdf.PageNo(), r.brandName), "", 0, "C", false, 0, "")
	})

	return pdf
}

func (r reportRenderer) layout(c canvas, input model.ReportInput) {
	c.AddPage()

	c.SetFont(fontFamily, "", 12)
	setTextColor(c, darkText)
	c.CellFormat(0, 10, "Generated on: "+input.GeneratedAt.Format(generatedAtLayout), "", 1, "C", false, 0, "")
	c.Ln(sectionSpacing)

	sectionHeader(c, "GitHub Summary Statistics")
	textLine(c, fmt.Sprintf("Total Repositories: %d", input.Statistics.TotalRepositories))
	textLine(c, fmt.Sprintf("Total Commits: %d", input.Statistics.TotalCommits))
	textLine(c, fmt.Sprintf("Total Pull Requests: %d", input.Statistics.TotalPullRequests))
	textLine(c, fmt.Sprintf("Total Workflows: %d", input.Statistics.TotalWorkflows))
	c.Ln(sectionSpacing)

	skillsSection(c, "Skills Analysis (All Repositories)", input.AllSkills)
	languagesSection(c, "Languages Used (All Repositories)", input.AllLanguages)

	c.AddPage()
	skillsSection(c, "Skills Analysis (User-Owned Repositories)", input.OwnedSkills)
	languagesSection(c, "Languages Used (User-Owned Repositories)", input.OwnedLanguages)

	sectionHeader(c, "Candidate Evaluation")
	textLine(c, fmt.Sprintf("GitHub Rating: %.2f/10", input.Rating))
	textLine(c, fmt.Sprintf("Suggested Salary: %.2f LPA (Based on rating between %g and %g LPA)", input.Salary, input.Band.Min, input.Band.Max))
	textLine(c, fmt.Sprintf("Overall Rating: %.2f/10", input.OverallRating))
}

// sectionHeader draws a full width colored title bar
func sectionHeader(c canvas, title string) {
	c.SetFont(fontFamily, "B", 14)
	setTextColor(c, lightText)
	setFillColor(c, sectionFillColor)
	c.CellFormat(0, 10, title, "", 1, "C", true, 0, "")
	c.Ln(3)

	c.SetFont(fontFamily, "", 12)
	setTextColor(c, darkText)
}

func textLine(c canvas, text string) {
	c.CellFormat(0, lineHeight, text, "", 1, "", false, 0, "")
}

func skillsSection(c canvas, title string, skills []model.SkillCount) {
	sectionHeader(c, title)

	if len(skills) == 0 {
		textLine(c, noDataLine)
	}

	for _, skill := range skills {
		textLine(c, fmt.Sprintf("%s: %d repositories", skill.Language, skill.Repositories))
	}

	c.Ln(sectionSpacing)
}

func languagesSection(c canvas, title string, languages model.LanguageByteMap) {
	sectionHeader(c, title)

	if len(languages) == 0 {
		textLine(c, noDataLine)
		c.Ln(sectionSpacing)
		return
	}

	c.SetFont(fontFamily, "B", 12)
	textLine(c, "Language Distribution:")
	c.Ln(sectionSpacing)

	y := drawLanguageBars(c, languages.Sorted(), languages.Max(), c.GetY())

	left, _, _, _ := c.GetMargins()
	c.SetXY(left, y)
	c.SetFont(fontFamily, "", 12)
	c.Ln(sectionSpacing)
}

// drawLanguageBars returns the vertical position after the last bar
func drawLanguageBars(c canvas, usages []model.LanguageUsage, maxBytes int, y float64) float64 {
	for _, usage := range usages {
		y = drawLanguageBar(c, usage, maxBytes, y)
	}

	return y
}

// drawLanguageBar draws a single bar, starting a new page first when the remaining height is too small
// a bar is never split between two pages
func drawLanguageBar(c canvas, usage model.LanguageUsage, maxBytes int, startY float64) float64 {
	_, pageHeight := c.GetPageSize()
	left, _, _, bottom := c.GetMargins()

	if startY+barHeight+barPadding > pageHeight-bottom {
		c.AddPage()
		startY = c.GetY()
	}

	ratio := 0.0
	if maxBytes > 0 {
		ratio = float64(usage.Bytes) / float64(maxBytes)
	}

	startX := left + barLabelWidth
	filledWidth := ratio * barWidth

	c.SetXY(left+2, startY+2)
	c.SetFont(fontFamily, "B", 10)
	setTextColor(c, darkText)
	c.CellFormat(barLabelWidth-5, barHeight, usage.Language, "", 0, "R", false, 0, "")

	setFillColor(c, trackColor)
	c.Rect(startX, startY, barWidth, barHeight, "F")

	if filledWidth > 0 {
		setFillColor(c, fillColor)
		c.Rect(startX, startY, filledWidth, barHeight, "F")
	}

	label := fmt.Sprintf("%.1f%% (%s)", ratio*100, FormatBytes(usage.Bytes))

	c.SetFont(fontFamily, "", 10)
	if labelFitsInFill(filledWidth, c.GetStringWidth(label)) {
		setTextColor(c, lightText)
	} else {
		setTextColor(c, darkText)
	}

	c.SetXY(startX+5, startY+2)
	c.CellFormat(barWidth-10, barHeight-4, label, "", 1, "", false, 0, "")
	setTextColor(c, darkText)

	return startY + barHeight + barSpacing
}

// labelFitsInFill reports if the label can be drawn in light color over the filled part of the bar
func labelFitsInFill(filledWidth, labelWidth float64) bool {
	return filledWidth > labelWidth+barLabelPadding
}

// FormatBytes formats a size with one decimal, from B to TB
func FormatBytes(bytes int) string {
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}

	return fmt.Sprintf("%.1f TB", size)
}

func setTextColor(c canvas, color rgb) {
	c.SetTextColor(color.r, color.g, color.b)
}

func setFillColor(c canvas, color rgb) {
	c.SetFillColor(color.r, color.g, color.b)
}
