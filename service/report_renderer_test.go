package service

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/Scalingo/sclng-developer-report/config"
	"github.com/Scalingo/sclng-developer-report/model"
	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRect struct {
	page       int
	x, y, w, h float64
	color      rgb
}

type recordedText struct {
	page int
	text string
}

// recordingCanvas keeps track of every rectangle and text cell drawn, with its page
type recordingCanvas struct {
	*fpdf.Fpdf
	fill  rgb
	rects []recordedRect
	texts []recordedText
}

func (r *recordingCanvas) SetFillColor(red, green, blue int) {
	r.fill = rgb{red, green, blue}
	r.Fpdf.SetFillColor(red, green, blue)
}

func (r *recordingCanvas) Rect(x, y, w, h float64, styleStr string) {
	r.rects = append(r.rects, recordedRect{page: r.PageNo(), x: x, y: y, w: w, h: h, color: r.fill})
	r.Fpdf.Rect(x, y, w, h, styleStr)
}

func (r *recordingCanvas) CellFormat(w, h float64, txtStr, borderStr string, ln int, alignStr string, fill bool, link int, linkStr string) {
	r.texts = append(r.texts, recordedText{page: r.PageNo(), text: txtStr})
	r.Fpdf.CellFormat(w, h, txtStr, borderStr, ln, alignStr, fill, link, linkStr)
}

func (r *recordingCanvas) textsOnPage(page int) []string {
	texts := make([]string, 0)
	for _, t := range r.texts {
		if t.page == page {
			texts = append(texts, t.text)
		}
	}
	return texts
}

// tracks are the bar backgrounds
func (r *recordingCanvas) tracks() []recordedRect {
	tracks := make([]recordedRect, 0)
	for _, rect := range r.rects {
		if rect.color == trackColor {
			tracks = append(tracks, rect)
		}
	}
	return tracks
}

func newRecordingCanvas(input model.ReportInput) *recordingCanvas {
	renderer := NewReportRenderer(*config.GetDefault()).(reportRenderer)
	return &recordingCanvas{Fpdf: renderer.newDocument(input)}
}

func manyLanguages(n int) model.LanguageByteMap {
	languages := model.LanguageByteMap{}
	for i := 0; i < n; i++ {
		languages[fmt.Sprintf("Lang%02d", i)] = (i + 1) * 1000
	}
	return languages
}

func aliceReportInput() model.ReportInput {
	return model.ReportInput{
		Username:    "alice",
		GeneratedAt: time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC),
		Statistics:  model.SummaryStatistics{TotalRepositories: 3},
		AllSkills: []model.SkillCount{
			{Language: "Python", Repositories: 1},
			{Language: "Go", Repositories: 1},
		},
		AllLanguages:   model.LanguageByteMap{"Python": 1000, "Go": 500},
		OwnedSkills:    []model.SkillCount{{Language: "Python", Repositories: 1}},
		OwnedLanguages: model.LanguageByteMap{"Python": 800},
		Band:           model.SalaryBand{Min: 5, Max: 15},
		Rating:         1.23,
		Salary:         6.23,
		OverallRating:  1.23,
	}
}

func TestRender(t *testing.T) {
	renderer := NewReportRenderer(*config.GetDefault())

	report, err := renderer.Render(aliceReportInput())

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(report.Content, []byte("%PDF")))
	assert.Equal(t, 2, report.Pages)
	assert.Regexp(t, regexp.MustCompile(`^report_alice_[0-9a-f]{8}\.pdf$`), report.Filename)
}

func TestLayoutSectionsOrder(t *testing.T) {
	input := aliceReportInput()
	c := newRecordingCanvas(input)

	NewReportRenderer(*config.GetDefault()).(reportRenderer).layout(c, input)
	require.NoError(t, c.Error())

	firstPage := strings.Join(c.textsOnPage(1), "\n")
	secondPage := c.textsOnPage(2)

	assert.Contains(t, firstPage, "Generated on: 2026-10-14 09:30:00")
	assert.Contains(t, firstPage, "Total Repositories: 3")
	assert.Contains(t, firstPage, "Go: 1 repositories")

	expectedOrder := []string{
		"Generated on: 2026-10-14 09:30:00",
		"GitHub Summary Statistics",
		"Skills Analysis (All Repositories)",
		"Languages Used (All Repositories)",
		"Python",
		"Go",
	}
	assertInOrder(t, c.textsOnPage(1), expectedOrder)

	// owned section only shows python, and everything after the forced page break is on page 2
	assertInOrder(t, secondPage, []string{
		"Skills Analysis (User-Owned Repositories)",
		"Python: 1 repositories",
		"Languages Used (User-Owned Repositories)",
		"Python",
		"100.0% (800.0 B)",
		"Candidate Evaluation",
		"GitHub Rating: 1.23/10",
		"Suggested Salary: 6.23 LPA (Based on rating between 5 and 15 LPA)",
		"Overall Rating: 1.23/10",
	})
	assert.NotContains(t, secondPage, "Go")
	assert.Contains(t, c.textsOnPage(1), "50.0% (500.0 B)")
}

func TestLayoutWithoutLanguages(t *testing.T) {
	input := model.ReportInput{
		Username:       "nobody",
		AllLanguages:   model.LanguageByteMap{},
		OwnedLanguages: model.LanguageByteMap{},
		Band:           model.SalaryBand{Min: 5, Max: 15},
	}
	c := newRecordingCanvas(input)

	NewReportRenderer(*config.GetDefault()).(reportRenderer).layout(c, input)
	require.NoError(t, c.Error())

	assert.Contains(t, c.textsOnPage(1), "No data available.")
	assert.Contains(t, c.textsOnPage(2), "No data available.")
	assert.Empty(t, c.tracks())
}

func TestDrawLanguageBarsPagination(t *testing.T) {
	input := aliceReportInput()
	c := newRecordingCanvas(input)
	c.AddPage()

	languages := manyLanguages(45)
	y := drawLanguageBars(c, languages.Sorted(), languages.Max(), c.GetY())
	require.NoError(t, c.Error())

	tracks := c.tracks()
	require.Len(t, tracks, 45)
	assert.Greater(t, c.PageCount(), 1)
	assert.Greater(t, y, 0.0)

	_, pageHeight := c.GetPageSize()
	_, top, _, bottom := c.GetMargins()

	previous := tracks[0]
	for i, track := range tracks {
		// each bar is drawn entirely inside the printable area of a single page
		assert.GreaterOrEqual(t, track.y, top, "bar %d", i)
		assert.LessOrEqual(t, track.y+track.h, pageHeight-bottom, "bar %d", i)

		if i > 0 {
			assert.GreaterOrEqual(t, track.page, previous.page, "bar %d", i)
			if track.page == previous.page {
				assert.Greater(t, track.y, previous.y, "bar %d", i)
			}
		}
		previous = track
	}

	// the filled part of a bar is on the same page as its track
	for _, rect := range c.rects {
		if rect.color == trackColor {
			continue
		}
		assert.Equal(t, fillColor, rect.color)
		assert.LessOrEqual(t, rect.w, barWidth)

		found := false
		for _, track := range tracks {
			if track.page == rect.page && track.y == rect.y {
				found = true
			}
		}
		assert.True(t, found, "fill at page %d y %.2f has no track", rect.page, rect.y)
	}
}

func TestRenderManyLanguagesAddsPages(t *testing.T) {
	input := aliceReportInput()
	input.AllLanguages = manyLanguages(40)
	input.OwnedLanguages = manyLanguages(40)

	report, err := NewReportRenderer(*config.GetDefault()).Render(input)

	require.NoError(t, err)
	assert.Greater(t, report.Pages, 2)
}

func TestDrawLanguageBarProportions(t *testing.T) {
	c := newRecordingCanvas(aliceReportInput())
	c.AddPage()

	start := c.GetY()
	next := drawLanguageBar(c, model.LanguageUsage{Language: "Go", Bytes: 250}, 1000, start)

	assert.Equal(t, start+barHeight+barSpacing, next)
	require.Len(t, c.rects, 2)
	assert.Equal(t, barWidth, c.rects[0].w)
	assert.Equal(t, trackColor, c.rects[0].color)
	assert.InDelta(t, barWidth/4, c.rects[1].w, 1e-9)
	assert.Equal(t, fillColor, c.rects[1].color)

	// empty language only draws the track
	c.rects = nil
	drawLanguageBar(c, model.LanguageUsage{Language: "Empty", Bytes: 0}, 0, next)
	assert.Len(t, c.rects, 1)
}

func TestLabelFitsInFill(t *testing.T) {
	assert.True(t, labelFitsInFill(100, 30))
	assert.False(t, labelFitsInFill(40, 30))
	assert.False(t, labelFitsInFill(30, 30))
	assert.False(t, labelFitsInFill(0, 10))
}

func TestFormatBytes(t *testing.T) {
	tests := map[int]string{
		0:                      "0.0 B",
		800:                    "800.0 B",
		1024:                   "1.0 KB",
		1536:                   "1.5 KB",
		5 * 1024 * 1024:        "5.0 MB",
		3 * 1024 * 1024 * 1024: "3.0 GB",
		2 << 40:                "2.0 TB",
	}

	for bytes, expected := range tests {
		assert.Equal(t, expected, FormatBytes(bytes))
	}
}

func TestReportFilenameIsUnique(t *testing.T) {
	first := ReportFilename("foo-bar")
	second := ReportFilename("foo-bar")

	assert.Regexp(t, `^report_foo-bar_[0-9a-f]{8}\.pdf$`, first)
	assert.NotEqual(t, first, second)
}

func assertInOrder(t *testing.T, texts []string, expected []string) {
	t.Helper()

	position := 0
	for _, text := range texts {
		if position < len(expected) && text == expected[position] {
			position++
		}
	}

	assert.Equal(t, len(expected), position, "texts %v do not contain %v in order", texts, expected)
}
