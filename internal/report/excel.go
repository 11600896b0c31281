// Package report renders admin exports of reservations and wallets as
// Excel workbooks.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"studiobook/internal/model"
)

const timeLayout = "2006-01-02 15:04"

// WriteWorkbook writes a two-sheet workbook (reservations, wallets) to w.
func WriteWorkbook(w io.Writer, reservations []model.Reservation, members []model.Member) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeReservationSheet(f, "Reservations", reservations, true); err != nil {
		return err
	}
	if err := writeWalletSheet(f, "Wallets", members); err != nil {
		return err
	}
	return f.Write(w)
}

func writeReservationSheet(f *excelize.File, name string, reservations []model.Reservation, first bool) error {
	if err := addSheet(f, name, first); err != nil {
		return err
	}

	header := []interface{}{"ID", "Reference", "Member", "Start", "End", "Points", "Peak cells", "Status", "Created"}
	if err := writeRow(f, name, 1, header); err != nil {
		return err
	}
	if err := boldRow(f, name, 1, len(header)); err != nil {
		return err
	}

	for i, r := range reservations {
		row := []interface{}{
			r.ID, r.Reference, r.MemberID,
			r.StartTime.Format(timeLayout), r.EndTime.Format(timeLayout),
			r.PointsCost, r.PeakCells, r.Status,
			r.CreatedAt.Format(timeLayout),
		}
		if err := writeRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeWalletSheet(f *excelize.File, name string, members []model.Member) error {
	if err := addSheet(f, name, false); err != nil {
		return err
	}

	header := []interface{}{"ID", "Name", "Points", "Points cap", "Peak used", "Peak cap"}
	if err := writeRow(f, name, 1, header); err != nil {
		return err
	}
	if err := boldRow(f, name, 1, len(header)); err != nil {
		return err
	}

	for i, m := range members {
		row := []interface{}{
			m.ID, m.Name, m.MonthlyPoints, m.MonthlyPointsMax,
			m.WeekendSlotsUsed, m.WeekendSlotsMax,
		}
		if err := writeRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func addSheet(f *excelize.File, name string, first bool) error {
	// Sheet names are capped at 31 chars by the format.
	if len(name) > 31 {
		name = name[:31]
	}
	if first {
		return f.SetSheetName("Sheet1", name)
	}
	_, err := f.NewSheet(name)
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

func boldRow(f *excelize.File, sheet string, row, width int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	startCell, _ := excelize.CoordinatesToCellName(1, row)
	endCell, _ := excelize.CoordinatesToCellName(width, row)
	return f.SetCellStyle(sheet, startCell, endCell, style)
}
