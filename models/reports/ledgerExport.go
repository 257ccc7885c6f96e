package reports

import (
	"context"
	"fmt"
	"io"

	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"github.com/xuri/excelize/v2"
)

const ledgerSheet = "Ledger"

// ExportLedgerXlsx streams the filtered ledger as a spreadsheet. Pages
// through the range so large exports stay bounded in memory.
func ExportLedgerXlsx(ctx context.Context, filter models.LedgerFilter, w io.Writer) error {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return err
	}

	headings := []string{"EntryDate", "PostingType", "ReferenceId", "ItemCode", "Location", "Qty", "Uom", "PostedBy", "Reversal", "PostingId"}
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(ledgerSheet, cell, h)
	}

	const pageSize = 1000
	rowNo := 2
	for offset := 0; ; offset += pageSize {
		rows, err := models.LedgerRange(ctx, filter, pageSize, offset)
		if err != nil {
			return err
		}
		for _, row := range rows {
			f.SetCellValue(ledgerSheet, "A"+fmt.Sprint(rowNo), row.EntryDate.Format("2006-01-02 15:04:05"))
			f.SetCellValue(ledgerSheet, "B"+fmt.Sprint(rowNo), string(row.PostingType))
			f.SetCellValue(ledgerSheet, "C"+fmt.Sprint(rowNo), row.ReferenceId)
			f.SetCellValue(ledgerSheet, "D"+fmt.Sprint(rowNo), row.ItemCode)
			f.SetCellValue(ledgerSheet, "E"+fmt.Sprint(rowNo), string(row.LocationCode))
			f.SetCellValue(ledgerSheet, "F"+fmt.Sprint(rowNo), row.Qty.String())
			f.SetCellValue(ledgerSheet, "G"+fmt.Sprint(rowNo), row.Uom)
			f.SetCellValue(ledgerSheet, "H"+fmt.Sprint(rowNo), row.CreatedBy)
			f.SetCellValue(ledgerSheet, "I"+fmt.Sprint(rowNo), row.IsReversal)
			f.SetCellValue(ledgerSheet, "J"+fmt.Sprint(rowNo), row.PostingId)
			rowNo++
		}
		if len(rows) < pageSize {
			break
		}
	}

	return f.Write(w)
}
