// Package export reads submissions back out of the record store, as ordered
// listings for the API and as xlsx reports for download.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nexusacademy/inscriptio/internal/model"
)

// Store is the read side of the record store.
type Store interface {
	List(ctx context.Context, cohorte string, ascending bool) ([]model.Submission, error)
	DistinctCohortes(ctx context.Context) ([]string, error)
}

// Engine materializes listings and spreadsheet exports. It holds no state of
// its own; every call is a pure function of the current store contents.
type Engine struct {
	store Store
}

// NewEngine constructs an Engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// List returns submissions newest first, optionally filtered by cohort.
func (e *Engine) List(ctx context.Context, cohorte string) ([]model.Submission, error) {
	return e.store.List(ctx, cohorte, false)
}

// Cohortes returns the distinct cohort labels, descending.
func (e *Engine) Cohortes(ctx context.Context) ([]string, error) {
	return e.store.DistinctCohortes(ctx)
}

// header and date layout of the exported sheet. Exports are chronological
// reports, so rows are ordered oldest first, unlike listings.
var excelHeader = []interface{}{"Date", "Nom", "Whatsapp", "ID BE"}

const excelDateLayout = "02/01/2006 15:04"

// Excel serializes the cohort's submissions into a single-sheet xlsx document
// named after the cohort. The whole document is returned as one byte slice.
func (e *Engine) Excel(ctx context.Context, cohorte string) ([]byte, error) {
	subs, err := e.store.List(ctx, cohorte, true)
	if err != nil {
		return nil, fmt.Errorf("list for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := sheetName(cohorte)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &excelHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, sub := range subs {
		idBE := "N/A"
		if sub.IDNexus != nil {
			idBE = *sub.IDNexus
		}
		row := []interface{}{
			sub.CreatedAt.Format(excelDateLayout),
			sub.Nom,
			sub.Whatsapp,
			idBE,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName fits the cohort label into Excel's sheet-name rules: at most 31
// characters and none of []:*?/\.
func sheetName(cohorte string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, cohorte)
	if name == "" {
		name = "inscriptions"
	}
	// Truncate by runes; slicing bytes could split a multi-byte character and
	// leave an invalid sheet name.
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}
