// Package export renders generated slot rosters as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"medsched/internal/slots"
)

// RosterWriter writes slot rosters into an Excel workbook, one sheet per
// calendar month.
type RosterWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewRosterWriter creates an empty workbook.
func NewRosterWriter() *RosterWriter {
	return &RosterWriter{file: excelize.NewFile()}
}

var rosterColumns = []string{"Date", "Weekday", "Slot Start", "Slot End"}

// WriteRoster appends every slot of the given groups, grouped into monthly
// sheets. durationMinutes determines each slot's end time.
func (w *RosterWriter) WriteRoster(groups []slots.DayGroup, durationMinutes int) error {
	lastSheet := ""
	for _, g := range groups {
		sheet := sheetName(g.Date.Year, g.Date.Month)
		if sheet != lastSheet {
			if err := w.addSheet(sheet); err != nil {
				return err
			}
			if err := w.writeHeader(); err != nil {
				return err
			}
			lastSheet = sheet
		}

		for _, s := range g.Slots {
			end := slots.FromMinutes(s.Minutes() + durationMinutes)
			row := []interface{}{g.Date.String(), g.DayOfWeek.String(), s.String(), end.String()}
			if err := w.writeRow(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteTo saves the workbook to w.
func (w *RosterWriter) WriteTo(out io.Writer) (int64, error) {
	return w.file.WriteTo(out)
}

// Close releases the workbook resources.
func (w *RosterWriter) Close() error {
	return w.file.Close()
}

func sheetName(year, month int) string {
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}

func (w *RosterWriter) addSheet(name string) error {
	// Excel caps sheet names at 31 chars.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		// Rename the default sheet instead of leaving it empty.
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename default sheet: %w", err)
		}
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

func (w *RosterWriter) writeHeader() error {
	for i, col := range rosterColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, col); err != nil {
			return err
		}
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(rosterColumns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}

	w.currentRow++
	return nil
}

func (w *RosterWriter) writeRow(row []interface{}) error {
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}
