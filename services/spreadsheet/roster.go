package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dobFormat   = "YYYY-MM-DD"
)

// roster columns, in order
var header = []interface{}{"student_id", "name", "gender", "dob", "phone", "email"}

// ExportRoster writes the roster of `c` (loaded with its Roster) as an XLSX workbook.
func ExportRoster(w io.Writer, c class.Class) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := sheetName(c.Name)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, s := range c.Roster {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.WithStack(err)
		}
		row := []interface{}{s.StudentID, s.Name, s.Gender, s.DOB.String(), s.ContactDetails.Phone, s.ContactDetails.Email}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}
	if err := f.SetColWidth(sheet, "A", "F", 20); err != nil {
		return errors.Wrap(err, "sizing columns")
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

// ParseRoster reads students from the first sheet of an XLSX workbook.
// The first row is a header. Every following row is returned, even if blank, so that
// the position of a row in the result matches its position in the sheet.
func ParseRoster(r io.Reader) ([]enrollment.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook does not contain any sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "reading sheet %s", sheet)
	}
	if len(rows) == 0 {
		return []enrollment.ImportRow{}, nil
	}

	students := make([]enrollment.ImportRow, 0, len(rows)-1)
	for _, row := range rows[1:] { // skip header
		col := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		var fldErrs map[string]string
		dob, err := core.ParseDate(col(3))
		if err != nil {
			fldErrs = map[string]string{"dob": fmt.Sprintf("%q is not a date (expected %s)", col(3), dobFormat)}
		}
		students = append(students, enrollment.ImportRow{
			NewStudent: student.NewStudent{
				StudentID: col(0),
				Name:      col(1),
				Gender:    col(2),
				DOB:       dob,
				ContactDetails: core.ContactDetails{
					Phone: col(4),
					Email: col(5),
				},
			},
			Errors: fldErrs,
		})
	}
	return students, nil
}

// sheetName returns a valid sheet name: at most 31 chars, none of : \ / ? * [ ]
func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, core.CleanString(name))
	if name == "" {
		name = "Roster"
	}
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

// FileName is the download name of a roster export.
func FileName(c class.Class) string {
	return fmt.Sprintf("%s-%d-roster.xlsx", strings.ReplaceAll(strings.ToLower(sheetName(c.Name)), " ", "-"), c.Year)
}
