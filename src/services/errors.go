package services

import "errors"

var (
	ErrParsingFailed    = errors.New("contract note parsing failed")
	ErrExtractionFailed = errors.New("contract note text extraction failed")
	ErrInvalidRequest   = errors.New("invalid request")
)
