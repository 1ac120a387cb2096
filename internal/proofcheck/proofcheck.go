// Package proofcheck verifies that stored proof-of-payment files are actually
// readable. It never touches the record store; submissions stay insert-only
// and unreadable proofs are surfaced to operators instead of flagged on rows.
package proofcheck

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	pdf "github.com/ledongthuc/pdf"
)

// ErrEmpty is reported for zero-length payloads.
var ErrEmpty = errors.New("empty proof payload")

// Report describes one inspected proof.
type Report struct {
	ContentType string
	// Pages is set only for PDF proofs.
	Pages int
}

// Inspect sniffs the payload's content type and, for PDFs, opens the document
// to confirm it parses. Image proofs are accepted on the sniff alone.
func Inspect(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	contentType := http.DetectContentType(data)
	report := &Report{ContentType: contentType}
	if contentType != "application/pdf" {
		return report, nil
	}
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf proof: %w", err)
	}
	report.Pages = doc.NumPage()
	if report.Pages == 0 {
		return nil, errors.New("pdf proof has no pages")
	}
	return report, nil
}
