package document

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func stubParser(text string, err error) Parser {
	return func([]byte) (string, error) { return text, err }
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		expect  Format
		wantErr bool
	}{
		{name: "pdf", input: "resume.pdf", expect: FormatPDF},
		{name: "upper case docx", input: "CV.DOCX", expect: FormatDOCX},
		{name: "legacy doc", input: "/tmp/job.doc", expect: FormatDOC},
		{name: "text file", input: "notes.txt", wantErr: true},
		{name: "no extension", input: "resume", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DetectFormat(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestExtractNormalizesWhitespace(t *testing.T) {
	e := New(WithParser(FormatPDF, stubParser("  Jane   Doe \r\n\r\n\r\n\r\n jane@x.com\t\tPython  ", nil)))

	got, err := e.Extract(context.Background(), "resume.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := "Jane Doe\n\njane@x.com Python"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestExtractEmptyTextIsUnreadable(t *testing.T) {
	e := New(WithParser(FormatDOCX, stubParser(" \n\t ", nil)))

	_, err := e.Extract(context.Background(), "cv.docx", []byte("PK"))
	if !errors.Is(err, ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestExtractParserFailureIsCorrupt(t *testing.T) {
	e := New(WithParser(FormatDOC, stubParser("", errors.New("bad header"))))

	_, err := e.Extract(context.Background(), "cv.doc", []byte{0xd0, 0xcf})
	if !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}

func TestExtractRecoversParserPanic(t *testing.T) {
	e := New(WithParser(FormatPDF, func([]byte) (string, error) { panic("broken xref") }))

	_, err := e.Extract(context.Background(), "cv.pdf", []byte("%PDF"))
	if !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}

func TestExtractHonoursTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	e := New(
		WithTimeout(10*time.Millisecond),
		WithParser(FormatPDF, func([]byte) (string, error) {
			<-release
			return "late", nil
		}),
	)

	_, err := e.Extract(context.Background(), "cv.pdf", []byte("%PDF"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestExtractRealPDFParserRejectsGarbage(t *testing.T) {
	e := New()

	_, err := e.Extract(context.Background(), "cv.pdf", []byte("definitely not a pdf"))
	if !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}

func TestExtractDOCWithoutConverterIsCorrupt(t *testing.T) {
	if _, err := exec.LookPath("wvText"); err == nil {
		t.Skip("wvText is installed")
	}

	_, err := New().Extract(context.Background(), "cv.doc", []byte("\xd0\xcf\x11\xe0\xa1\xb1\x1a\xe1 not really a doc"))
	if !errors.Is(err, ErrCorruptFile) {
		t.Fatalf("expected ErrCorruptFile, got %v", err)
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	e := New(WithParser(FormatPDF, stubParser("Jane Doe, jane@x.com", nil)))

	got, err := e.ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Jane Doe, jane@x.com" {
		t.Fatalf("unexpected text %q", got)
	}

	if _, err := e.ExtractFile(context.Background(), filepath.Join(dir, "missing.pdf")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := e.ExtractFile(context.Background(), filepath.Join(dir, "resume.odt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
