package exports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"leadtracker_backend/internal/leads/transport"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Leads"

var columns = []string{
	"ID", "Name", "Email", "Company", "Status", "Engaged",
	"Current Stage", "Progress", "Stage Updated At", "Last Contacted", "Created At", "Updated At",
}

func row(lead transport.LeadResponse) []string {
	return []string{
		lead.ID.String(),
		lead.Name,
		lead.Email,
		lead.Company,
		lead.Status,
		strconv.FormatBool(lead.Engaged),
		lead.CurrentStage,
		strconv.Itoa(lead.Progress),
		formatTime(lead.StageUpdatedAt),
		formatTime(lead.LastContacted),
		lead.CreatedAt.UTC().Format(time.RFC3339),
		lead.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Render writes leads to w in the given format, header row first.
func Render(w io.Writer, format Format, leads []transport.LeadResponse) error {
	switch format {
	case FormatCSV:
		return renderCSV(w, leads)
	case FormatXLSX:
		return renderXLSX(w, leads)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func renderCSV(w io.Writer, leads []transport.LeadResponse) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}
	for _, lead := range leads {
		if err := writer.Write(row(lead)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func renderXLSX(w io.Writer, leads []transport.LeadResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return err
	}

	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, lead := range leads {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(lead)
		out := make([]interface{}, len(values))
		for j, v := range values {
			out[j] = v
		}
		out[5] = lead.Engaged
		out[7] = lead.Progress
		if err := f.SetSheetRow(sheetName, cell, &out); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}
