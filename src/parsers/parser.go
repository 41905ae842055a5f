// backend/src/parsers/parser.go
package parsers

import (
	"errors"
	"fmt"
	"time"

	"github.com/username/notefolio/backend/src/models"
)

var ErrSectionNotFound = errors.New("could not find scrip wise summary section")

// SectionNotFoundError is returned when the document has no recognizable summary
// header. Excerpt holds the start of the offending text.
type SectionNotFoundError struct {
	Excerpt string
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("%v (document starts with %q)", ErrSectionNotFound, e.Excerpt)
}

func (e *SectionNotFoundError) Unwrap() error { return ErrSectionNotFound }

// BlockParseWarning describes one block or line that was skipped.
type BlockParseWarning struct {
	Strategy string `json:"strategy"`
	Index    int    `json:"index"`
	Reason   string `json:"reason"`
	Excerpt  string `json:"excerpt"`
}

func (w BlockParseWarning) String() string {
	return fmt.Sprintf("%s block %d: %s", w.Strategy, w.Index, w.Reason)
}

type ParseResult struct {
	Transactions []models.Transaction `json:"transactions"`
	Warnings     []BlockParseWarning  `json:"warnings"`
	OrderDate    time.Time            `json:"order_date"`
	DateFound    bool                 `json:"date_found"`
	Layout       string               `json:"layout"`
}

// Parser turns the plain text of a contract note into transactions.
type Parser interface {
	Parse(text string) (*ParseResult, error)
}

const excerptLen = 120

func excerpt(s string) string {
	r := []rune(s)
	if len(r) > excerptLen {
		return string(r[:excerptLen])
	}
	return s
}
