// Package loader reads source documents into page-structured text.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// ErrPDFLicenseRequired signals that PDF text extraction needs a UniPDF license key
// (loader.pdf_license_key, usually UNIPDF_LICENSE_KEY).
var ErrPDFLicenseRequired = errors.New("pdf text extraction requires a unipdf license key")

// Parser extracts pages from one kind of file.
type Parser interface {
	Supports(path string) bool
	// Ready reports whether the parser can run in the current configuration.
	Ready() error
	Parse(r io.Reader) ([]domain.Page, error)
}

// Loader picks a parser by file extension and returns the document.
type Loader struct {
	parsers []Parser
	logger  *zap.Logger
}

// New creates a loader with PDF and plain text support.
// licenseKey, if set, activates the metered UniPDF license.
func New(licenseKey string, logger *zap.Logger) (*Loader, error) {
	if licenseKey != "" {
		if err := license.SetMeteredKey(licenseKey); err != nil {
			return nil, fmt.Errorf("set unipdf license: %w", err)
		}
	}
	return &Loader{
		parsers: []Parser{&PDFParser{logger: logger, licensed: licenseKey != ""}, &TextParser{}},
		logger:  logger,
	}, nil
}

// Check reports whether path can be loaded at all, without reading it.
func (l *Loader) Check(path string) error {
	_, err := l.parserFor(path)
	return err
}

func (l *Loader) parserFor(path string) (Parser, error) {
	for _, p := range l.parsers {
		if p.Supports(path) {
			if err := p.Ready(); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			return p, nil
		}
	}
	return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
}

// Load reads the file at path. A document without any extractable text is an error.
func (l *Loader) Load(path string) (domain.Document, error) {
	parser, err := l.parserFor(path)
	if err != nil {
		return domain.Document{}, err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return domain.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pages, err := parser.Parse(f)
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse %s: %w", path, err)
	}

	doc := domain.Document{Source: path, Pages: pages}
	if strings.TrimSpace(doc.Text()) == "" {
		return domain.Document{}, fmt.Errorf("%s: %w", path, domain.ErrDocumentEmpty)
	}

	l.logger.Info("Document loaded",
		zap.String("source", path),
		zap.Int("pages", len(pages)),
	)
	return doc, nil
}

// TextParser treats the whole file as a single page.
type TextParser struct{}

// Supports reports plain text and markdown files.
func (p *TextParser) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md" || ext == ".markdown"
}

// Ready always succeeds.
func (p *TextParser) Ready() error { return nil }

// Parse reads r fully.
func (p *TextParser) Parse(r io.Reader) ([]domain.Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return []domain.Page{{Number: 1, Text: string(content)}}, nil
}

// PDFParser extracts text page by page with UniPDF.
type PDFParser struct {
	logger   *zap.Logger
	licensed bool
}

// Supports reports PDF files.
func (p *PDFParser) Supports(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

// Ready fails without a license key: unlicensed UniPDF refuses to extract text.
func (p *PDFParser) Ready() error {
	if !p.licensed {
		return ErrPDFLicenseRequired
	}
	return nil
}

// Parse returns one page per PDF page. Pages whose text cannot be extracted are
// kept with empty text so page numbers stay aligned with the source; a license
// rejection fails the whole document.
func (p *PDFParser) Parse(r io.Reader) ([]domain.Page, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("count pdf pages: %w", err)
	}

	pages := make([]domain.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		text, err := p.pageText(reader, i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}

func (p *PDFParser) pageText(reader *model.PdfReader, n int) (string, error) {
	page, err := reader.GetPage(n)
	if err != nil {
		return p.skipPage("Skipping unreadable pdf page", n, err)
	}
	ex, err := extractor.New(page)
	if err != nil {
		return p.skipPage("Skipping pdf page", n, err)
	}
	text, err := ex.ExtractText()
	if err != nil {
		return p.skipPage("Failed to extract pdf page text", n, err)
	}
	return text, nil
}

func (p *PDFParser) skipPage(msg string, n int, err error) (string, error) {
	if isLicenseError(err) {
		return "", fmt.Errorf("page %d: %w: %w", n, ErrPDFLicenseRequired, err)
	}
	p.logger.Warn(msg, zap.Int("page", n), zap.Error(err))
	return "", nil
}

// isLicenseError matches UniPDF's license rejections, which carry no exported sentinel.
func isLicenseError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "license")
}
