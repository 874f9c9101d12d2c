// Package export writes a recommendation run to an Excel workbook.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"unipal-workers/internal/documents"
	"unipal-workers/internal/models"
)

// Sheet names.
const (
	SummarySheet      = "Summary"
	UniversitiesSheet = "Ranked Universities"
	DocumentsSheet    = "Documents"
)

var universityHeaders = []string{
	"Rank", "University", "Country", "Match Score", "Tuition Fees", "Currency",
	"Eligibility", "Deadlines", "Curriculum", "Scholarships", "URL",
}

// WriteShortlist saves state as an .xlsx file at path and returns the final
// path, with the extension added when missing.
func WriteShortlist(path string, state models.ApplicationState) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return "", err
	}
	for _, name := range []string{UniversitiesSheet, DocumentsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return "", fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return "", err
	}

	if err := writeSummary(f, header, state); err != nil {
		return "", fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeUniversities(f, header, state.Universities); err != nil {
		return "", fmt.Errorf("failed to create universities sheet: %w", err)
	}
	if err := writeDocuments(f, header, state.Documents); err != nil {
		return "", fmt.Errorf("failed to create documents sheet: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func writeSummary(f *excelize.File, header int, state models.ApplicationState) error {
	_ = f.SetColWidth(SummarySheet, "A", "A", 28)
	_ = f.SetColWidth(SummarySheet, "B", "B", 60)

	rows := [][]interface{}{
		{"UniPal Shortlist", ""},
		{"Generated", time.Now().Format("2006-01-02 15:04")},
	}
	if p := state.StudentInfo; p != nil {
		rows = append(rows,
			[]interface{}{"Student", p.Name},
			[]interface{}{"Contact", p.ContactInfo},
			[]interface{}{"B.Tech CGPA", p.BtechCGPA},
			[]interface{}{"Field of Interest", p.FieldOfInterest()},
			[]interface{}{"Preferred Countries", strings.Join(p.PreferredCountries, ", ")},
		)
	}
	rows = append(rows,
		[]interface{}{"Universities", len(state.Universities)},
		[]interface{}{"Scholarships", len(state.Scholarships)},
		[]interface{}{"Documents Completed", fmt.Sprintf("%d / %d", documents.Completed(state.Documents), len(state.Documents))},
		[]interface{}{"Progress", fmt.Sprintf("%d%%", state.ProgressPercentage)},
	)
	if v := state.VisaInfo; v != nil {
		rows = append(rows,
			[]interface{}{"Visa Country", v.Country},
			[]interface{}{"Visa Fees", strings.TrimSpace(v.Fees + " " + v.Currency)},
			[]interface{}{"Visa Requirements", strings.Join(v.Requirements, "; ")},
		)
	}
	for _, s := range state.Scholarships {
		rows = append(rows, []interface{}{"Scholarship", fmt.Sprintf("%s (%s)", s.Name, s.Amount)})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetCellStyle(SummarySheet, "A1", "B1", header)
}

func writeUniversities(f *excelize.File, header int, universities []models.University) error {
	if err := writeHeader(f, UniversitiesSheet, header, universityHeaders); err != nil {
		return err
	}
	_ = f.SetColWidth(UniversitiesSheet, "B", "B", 35)
	_ = f.SetColWidth(UniversitiesSheet, "G", "J", 40)
	_ = f.SetColWidth(UniversitiesSheet, "K", "K", 45)

	for i, u := range universities {
		rank := i + 1
		if u.Ranking != nil {
			rank = *u.Ranking
		}
		row := []interface{}{
			rank, u.Name, u.Country, u.MatchScore, u.TuitionFees, u.Currency,
			u.EligibilityCriteria, u.Deadlines, u.CourseCurriculum, u.ScholarshipOptions, u.URL,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(UniversitiesSheet, cell, &row); err != nil {
			return err
		}
		if u.URL != "" {
			link, _ := excelize.CoordinatesToCellName(len(row), i+2)
			_ = f.SetCellHyperLink(UniversitiesSheet, link, u.URL, "External")
		}
	}
	return freezeHeader(f, UniversitiesSheet)
}

func writeDocuments(f *excelize.File, header int, docs []models.Document) error {
	if err := writeHeader(f, DocumentsSheet, header, []string{"Document", "Status", "Required", "Description"}); err != nil {
		return err
	}
	_ = f.SetColWidth(DocumentsSheet, "A", "A", 30)
	_ = f.SetColWidth(DocumentsSheet, "D", "D", 55)

	for i, d := range docs {
		required := "No"
		if d.Required {
			required = "Yes"
		}
		row := []interface{}{d.Name, d.Status, required, d.Description}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(DocumentsSheet, cell, &row); err != nil {
			return err
		}
	}
	return freezeHeader(f, DocumentsSheet)
}

func writeHeader(f *excelize.File, sheet string, style int, headers []string) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func freezeHeader(f *excelize.File, sheet string) error {
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
