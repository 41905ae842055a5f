// Package extract pulls the text layer out of contract-note PDFs, which brokers
// usually password protect with the client's PAN or date of birth.
package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/username/notefolio/backend/src/logger"
)

var (
	ErrExtractionFailed = errors.New("pdf text extraction failed")
	ErrInvalidPassword  = errors.New("pdf password is missing or wrong")
	ErrNoText           = errors.New("pdf has no text layer")
)

// passwordOnce hands the reader the password a single time. The pdf package
// keeps asking until it gets an empty string.
func passwordOnce(password string) func() string {
	used := false
	return func() string {
		if used {
			return ""
		}
		used = true
		return password
	}
}

// ExtractText returns the text of every page, one line per text row, pages
// separated by a blank line.
func ExtractText(r io.ReaderAt, size int64, password string) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.L.Error("PDF reader panicked", "panic", rec)
			text, err = "", fmt.Errorf("%w: %v", ErrExtractionFailed, rec)
		}
	}()

	reader, err := pdf.NewReaderEncrypted(r, size, passwordOnce(password))
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return "", ErrInvalidPassword
		}
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, pageErr := pageText(page)
		if pageErr != nil {
			logger.L.Warn("Skipping unreadable PDF page", "page", i, "error", pageErr)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}

	if strings.TrimSpace(b.String()) == "" {
		return "", ErrNoText
	}
	logger.L.Debug("PDF text extracted", "pages", pages, "chars", b.Len())
	return b.String(), nil
}

// pageText prefers row grouping, which keeps table cells of one line together,
// and falls back to the plain content stream.
func pageText(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err == nil && len(rows) > 0 {
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			var line strings.Builder
			for _, word := range row.Content {
				if line.Len() > 0 && !strings.HasPrefix(word.S, " ") {
					line.WriteByte(' ')
				}
				line.WriteString(word.S)
			}
			lines = append(lines, line.String())
		}
		return strings.Join(lines, "\n"), nil
	}
	return page.GetPlainText(nil)
}
