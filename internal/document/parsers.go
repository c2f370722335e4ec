package document

import (
	"bytes"
	"fmt"
	"io"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

// Parser turns raw document bytes into text.
type Parser func(data []byte) (string, error)

func defaultParsers() map[Format]Parser {
	return map[Format]Parser{
		FormatPDF:  parsePDF,
		FormatDOCX: parseDOCX,
		FormatDOC:  parseDOC,
	}
}

func parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return buf.String(), nil
}

func parseDOCX(data []byte) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("convert docx: %w", err)
	}
	return text, nil
}

// parseDOC shells out to wvText, which must be on PATH. Without it every
// .doc fails as corrupt.
func parseDOC(data []byte) (string, error) {
	text, _, err := docconv.ConvertDoc(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("convert doc: %w", err)
	}
	return text, nil
}
