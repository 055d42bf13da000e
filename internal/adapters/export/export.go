// Package export writes registrations and judging results as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/ecell/internal/domain/model"
	"github.com/okian/ecell/internal/domain/types"
)

// Sheet names.
const (
	SheetRegistrations = "Registrations"
	SheetResults       = "Results"
)

// ContentType is the media type of the written workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateLayout = "2006-01-02"

// numFmtTwoDecimals is the built-in "0.00" number format.
const numFmtTwoDecimals = 2

var registrationHeader = []any{
	"Team Name", "Registration Date", "Team Size", "Members",
	"Departments", "Email Addresses", "Phone Numbers", "Status",
}

// Registrations writes one row per registration.
func Registrations(w io.Writer, regs []model.Registration) error {
	f, err := newWorkbook(SheetRegistrations)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeRow(f, SheetRegistrations, 1, registrationHeader); err != nil {
		return err
	}
	for i, r := range regs {
		date := ""
		if !r.RegistrationDate.IsZero() {
			date = r.RegistrationDate.Format(dateLayout)
		}
		row := []any{
			r.TeamName,
			date,
			r.TeamSize(),
			joinMembers(r.Members, func(m model.Member) string { return m.Name }),
			joinMembers(r.Members, func(m model.Member) string { return m.Department }),
			joinMembers(r.Members, func(m model.Member) string { return m.Email }),
			joinMembers(r.Members, func(m model.Member) string { return m.Phone }),
			r.Status,
		}
		if err := writeRow(f, SheetRegistrations, i+2, row); err != nil {
			return err
		}
	}
	return finish(f, SheetRegistrations, w)
}

// Results writes the ranked standings with one column of raw scores per
// criterion. Totals keep full precision and are displayed with two decimals.
func Results(w io.Writer, res types.Results) error { //nolint:gocritic // hugeParam
	f, err := newWorkbook(SheetResults)
	if err != nil {
		return err
	}
	defer f.Close()

	header := []any{"Rank", "Team"}
	for _, c := range res.Criteria {
		header = append(header, fmt.Sprintf("%s (%.0f%%)", c.Name, math.Round(c.Weight*100)))
	}
	header = append(header, "Total Score")
	if err := writeRow(f, SheetResults, 1, header); err != nil {
		return err
	}

	for i, s := range res.Standings {
		team := s.TeamName
		if team == "" {
			team = s.TeamID
		}
		row := []any{s.Rank, team}
		for _, c := range res.Criteria {
			row = append(row, s.Scores[c.ID])
		}
		row = append(row, s.TotalScore)
		if err := writeRow(f, SheetResults, i+2, row); err != nil {
			return err
		}
	}

	totalCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		return fmt.Errorf("export style: %w", err)
	}
	if err := f.SetColStyle(SheetResults, totalCol, style); err != nil {
		return fmt.Errorf("export style: %w", err)
	}
	return finish(f, SheetResults, w)
}

func newWorkbook(sheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("export sheet: %w", err)
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export row %d: %w", row, err)
	}
	return nil
}

// finish bolds the header row and writes the workbook.
func finish(f *excelize.File, sheet string, w io.Writer) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("export style: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export write: %w", err)
	}
	return nil
}

func joinMembers(members []model.Member, field func(model.Member) string) string {
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = field(m)
	}
	return strings.Join(parts, ", ")
}

// FileName turns base into a download file name: characters outside
// [A-Za-z0-9._-] become underscores and ".xlsx" is appended.
func FileName(base string) string {
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSpace(base))
	if base == "" {
		base = "export"
	}
	return base + ".xlsx"
}
