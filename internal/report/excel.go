// Package report exports an owner's reservations to an Excel workbook.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"kidspark/internal/model"
)

const sheetName = "Bookings"

var columns = []string{
	"Reservation ID", "Venue", "Date", "From", "To",
	"Holder", "Phone", "Cost", "Payment Type", "Payment Ref",
	"Status", "Created At", "Active",
}

// WriteOwnerReport writes the reservations as a single-sheet workbook. The
// Active column reflects slot occupancy at now under the given grace window.
func WriteOwnerReport(w io.Writer, reservations []model.Reservation, now time.Time, window time.Duration) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetName)

	if err := writeRow(f, 1, headerCells()); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheetName, startCell, endCell, style)
	}

	for i, r := range reservations {
		active := "no"
		if r.IsActive(now, window) {
			active = "yes"
		}
		row := []interface{}{
			r.ID, r.VenueName, r.Date, r.FromTime, r.ToTime,
			r.HolderName, r.HolderPhone, r.Cost, r.PaymentType, r.PaymentRef,
			r.Status, r.CreatedAt.Format("2006-01-02 15:04"), active,
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func headerCells() []interface{} {
	cells := make([]interface{}, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	return cells
}

func writeRow(f *excelize.File, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, v); err != nil {
			return err
		}
	}
	return nil
}
