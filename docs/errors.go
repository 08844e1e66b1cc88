package docs

import "errors"

var (
	ErrEmptyFile         = errors.New("empty file received")
	ErrUnsupportedFormat = errors.New("file type not allowed")
	ErrInvalidEncoding   = errors.New("file is not valid UTF-8")
	ErrMalformed         = errors.New("malformed document")
	ErrNoText            = errors.New("no text content could be extracted from the file")
)
