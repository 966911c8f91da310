package service

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Scalingo/sclng-developer-report/logger"
	"github.com/Scalingo/sclng-developer-report/model"
	"github.com/ledongthuc/pdf"
	log "github.com/sirupsen/logrus"
)

type DocumentExtractor interface {
	Extract(r io.ReadSeeker) model.ExtractedDocument
}

type pdfExtractor struct{}

// NewPDFExtractor returns an extractor reading the text layer and link annotations of a PDF
func NewPDFExtractor() DocumentExtractor {
	return pdfExtractor{}
}

// Extract never returns an error: an unreadable document or a document without text layer
// (scanned images for example) gives an empty document, callers check IsEmpty
func (e pdfExtractor) Extract(r io.ReadSeeker) model.ExtractedDocument {
	log.Debug("starting PDF text and hyperlink extraction")

	doc, err := e.extract(r)
	if err != nil {
		log.WithError(err).Error("failed to extract text from PDF")
		return model.ExtractedDocument{}
	}

	if doc.IsEmpty() {
		log.Warning("no text or hyperlinks extracted from PDF")
		return model.ExtractedDocument{}
	}

	log.WithFields(log.Fields{
		"links":   len(doc.Links),
		"preview": logger.Truncate(doc.Text, 100),
	}).Debug("text and hyperlinks extracted from PDF")

	return doc
}

func (e pdfExtractor) extract(r io.ReadSeeker) (doc model.ExtractedDocument, err error) {
	// the pdf library panics on some malformed documents
	defer func() {
		if rec := recover(); rec != nil {
			doc = model.ExtractedDocument{}
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return model.ExtractedDocument{}, err
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return model.ExtractedDocument{}, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return model.ExtractedDocument{}, err
	}

	lines := make([]string, 0)
	links := make([]string, 0)

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(pageFonts(page))
		if err != nil {
			return model.ExtractedDocument{}, fmt.Errorf("page %d: %w", i, err)
		}

		if text != "" {
			lines = append(lines, text)
		}

		for _, uri := range pageLinks(page) {
			log.WithField("page", i).Debugf("found hyperlink: %s", uri)
			links = append(links, uri)
			lines = append(lines, uri)
		}
	}

	return model.ExtractedDocument{
		Text:  strings.Join(lines, "\n"),
		Links: links,
	}, nil
}

func pageFonts(page pdf.Page) map[string]*pdf.Font {
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		font := page.Font(name)
		fonts[name] = &font
	}

	return fonts
}

// pageLinks returns the URI of every /Link annotation with an URI action, in page order
func pageLinks(page pdf.Page) []string {
	annots := page.V.Key("Annots")
	if annots.Kind() != pdf.Array {
		return nil
	}

	uris := make([]string, 0)
	for i := 0; i < annots.Len(); i++ {
		annot := annots.Index(i)
		if annot.Key("Subtype").Name() != "Link" {
			continue
		}

		action := annot.Key("A")
		if action.Kind() != pdf.Dict {
			continue
		}

		uri := action.Key("URI")
		if uri.Kind() != pdf.String {
			continue
		}

		if s := strings.TrimSpace(uri.RawString()); s != "" {
			uris = append(uris, s)
		}
	}

	return uris
}
