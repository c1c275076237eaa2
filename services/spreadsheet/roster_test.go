package spreadsheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
)

func TestExportThenParseRoster(t *testing.T) {
	c := class.Class{
		Name: "Grade 1/A",
		Year: 2024,
		Roster: []class.RosterEntry{
			{
				StudentID:      "STD-001",
				Name:           "John Doe",
				Gender:         core.GenderMale,
				DOB:            core.NewDate(2012, time.June, 1),
				ContactDetails: core.ContactDetails{Phone: "+243 810 000 001", Email: "john@school.test"},
			},
			{
				StudentID:      "STD-002",
				Name:           "Jane Doe",
				Gender:         core.GenderFemale,
				DOB:            core.NewDate(2013, time.January, 20),
				ContactDetails: core.ContactDetails{Phone: "+243 810 000 002", Email: "jane@school.test"},
			},
		},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, ExportRoster(buf, c))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Grade 1-A", f.GetSheetName(0))
	_ = f.Close()

	rows, err := ParseRoster(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if assert.Len(t, rows, 2) {
		assert.Equal(t, "STD-002", rows[1].StudentID)
		assert.Equal(t, "Jane Doe", rows[1].Name)
		assert.Equal(t, core.GenderFemale, rows[1].Gender)
		assert.Equal(t, core.NewDate(2013, time.January, 20), rows[1].DOB)
		assert.Equal(t, "jane@school.test", rows[1].ContactDetails.Email)
		assert.Empty(t, rows[1].AssignedClass)
		assert.Empty(t, rows[1].Errors)
	}
}

func TestParseRoster(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetSheetRow(sheet, "A1", &[]interface{}{"student_id", "name"})
	_ = f.SetSheetRow(sheet, "A2", &[]interface{}{" STD-9 ", "Short Row"})
	_ = f.SetSheetRow(sheet, "A4", &[]interface{}{"STD-10", "After Blank", "other", "not a date"})
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ParseRoster(buf)
	require.NoError(t, err)
	if assert.Len(t, rows, 3) {
		assert.Equal(t, "STD-9", rows[0].StudentID)
		assert.Empty(t, rows[0].ContactDetails.Email)
		assert.Empty(t, rows[0].Errors)
		assert.Empty(t, rows[1].StudentID)
		assert.True(t, rows[2].DOB.IsZero())
		assert.Equal(t, map[string]string{"dob": `"not a date" is not a date (expected YYYY-MM-DD)`}, rows[2].Errors)
	}

	_, err = ParseRoster(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "grade-1-a-2024-roster.xlsx", FileName(class.Class{Name: "Grade 1/A", Year: 2024}))
}
