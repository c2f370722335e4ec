package document

import "errors"

var (
	// ErrUnsupportedFormat is returned for extensions other than pdf, doc and docx.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrUnreadableDocument is returned when a parser yields no text.
	ErrUnreadableDocument = errors.New("document contains no extractable text")
	// ErrNotFound is returned when the document path does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrCorruptFile is returned when a parser rejects the file contents.
	ErrCorruptFile = errors.New("document is corrupt")
)
