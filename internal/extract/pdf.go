// Package extract converts uploaded PDF bytes into plain text for analysis.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MinTextLength is the threshold below which a document counts as unreadable.
const MinTextLength = 50

// ErrEmptyDocument marks a PDF that yields no usable text. Callers reject
// these before queueing rather than failing the job later.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// ExtractionError wraps decode failures of corrupt or non-PDF input.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("pdf extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Result struct {
	Text  string
	Pages int
}

// Text extracts best-effort plain text from raw PDF bytes.
func Text(data []byte) (Result, error) {
	result, err := readPlainText(data)
	if err != nil {
		return Result{}, &ExtractionError{Err: err}
	}
	if len(strings.TrimSpace(result.Text)) < MinTextLength {
		return Result{}, ErrEmptyDocument
	}
	return result, nil
}

// readPlainText isolates the pdf library, which panics on some malformed
// inputs instead of returning an error.
func readPlainText(data []byte) (result Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("malformed pdf: %v", recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return Result{}, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Result{}, err
	}

	return Result{Text: buf.String(), Pages: reader.NumPage()}, nil
}
