package cv

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
)

// MaxFileSize caps a single uploaded document.
const MaxFileSize = 10 << 20

type CVParser struct {
	uploadsDir string // empty = do not keep uploaded files
}

type ParsedCV struct {
	Filename string
	FileType string
	FileSize int64
	FullText string
}

// ExtractionError is a terminal failure for one document: unsupported
// format, corrupt file or converter failure.
type ExtractionError struct {
	Filename string
	Reason   string
	Cause    error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Filename, e.Reason, e.Cause)
	}
	return fmt.Sprintf("extract %s: %s", e.Filename, e.Reason)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

func NewCVParser(uploadsDir string) *CVParser {
	return &CVParser{
		uploadsDir: uploadsDir,
	}
}

// SupportedExtension reports whether ParseFile can handle filename.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".doc", ".rtf", ".odt", ".txt":
		return true
	}
	return false
}

// ErrFileTooLarge is the cause of the ExtractionError ReadUpload returns for
// files over MaxFileSize.
var ErrFileTooLarge = errors.New("file too large (max 10MB)")

// ReadUpload reads a whole file, refusing anything over MaxFileSize.
func ReadUpload(filename string, reader io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, MaxFileSize+1))
	if err != nil {
		return nil, &ExtractionError{Filename: filename, Reason: "failed to read upload", Cause: err}
	}
	if len(data) > MaxFileSize {
		return nil, &ExtractionError{Filename: filename, Reason: "file too large", Cause: ErrFileTooLarge}
	}
	return data, nil
}

// ParseFile extracts paragraph-separated text from PDF/DOCX/DOC/RTF/ODT/TXT files.
func (p *CVParser) ParseFile(filename string, reader io.Reader) (*ParsedCV, error) {
	data, err := ReadUpload(filename, reader)
	if err != nil {
		return nil, err
	}
	return p.Parse(filename, data)
}

// Parse is ParseFile for bytes already in memory.
func (p *CVParser) Parse(filename string, data []byte) (*ParsedCV, error) {
	if p.uploadsDir != "" {
		if err := p.keep(filename, data); err != nil {
			return nil, &ExtractionError{Filename: filename, Reason: "failed to save file", Cause: err}
		}
	}

	fileType := strings.ToLower(filepath.Ext(filename))
	var text string

	switch fileType {
	case ".pdf", ".docx", ".doc", ".rtf", ".odt":
		res, err := docconv.Convert(bytes.NewReader(data), docconv.MimeTypeByExtension(filename), false)
		if err != nil {
			return nil, &ExtractionError{Filename: filename, Reason: "failed to parse document", Cause: err}
		}
		text = res.Body
	case ".txt":
		text = string(data)
	default:
		return nil, &ExtractionError{Filename: filename, Reason: fmt.Sprintf("unsupported file type %q", fileType)}
	}

	return &ParsedCV{
		Filename: filename,
		FileType: fileType,
		FileSize: int64(len(data)),
		FullText: NormalizeText(text),
	}, nil
}

func (p *CVParser) keep(filename string, data []byte) error {
	if err := os.MkdirAll(p.uploadsDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.uploadsDir, filepath.Base(filename)), data, 0644)
}

// NormalizeText trims trailing whitespace on every line and collapses runs of
// blank lines, leaving paragraphs separated by exactly one empty line. NUL
// bytes are dropped since Postgres TEXT columns reject them.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var b strings.Builder
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\f\v ")
		if strings.TrimSpace(line) == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return b.String()
}
