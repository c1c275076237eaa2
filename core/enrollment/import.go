package enrollment

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/student"
)

type (
	// ImportRow is a Student read from a roster sheet.
	// Errors holds the cells which could not be read, keyed by field.
	ImportRow struct {
		student.NewStudent
		Errors map[string]string
	}

	ImportResult struct {
		Row       int               `json:"row"` // as numbered in the source sheet
		StudentID string            `json:"student_id"`
		Student   *student.Student  `json:"student,omitempty"`
		Errors    map[string]string `json:"errors,omitempty"`
	}

	ImportReport struct {
		ClassID         string         `json:"class_id"`
		Enrolled        int            `json:"enrolled"`
		Skipped         int            `json:"skipped"`
		CapacityReached bool           `json:"capacity_reached"`
		Results         []ImportResult `json:"results"`
	}
)

// ImportRoster enrolls `rows` into a Class one by one.
// Invalid rows are reported and skipped; the import stops once the Class is full.
func (m *Manager) ImportRoster(ctx context.Context, classID string, rows []ImportRow) (ImportReport, error) {
	classID = core.CleanString(classID)
	if _, err := m.store.GetClass(ctx, classID, false); err != nil {
		return ImportReport{}, wrapStoreErr(err, "getting class")
	}

	report := ImportReport{ClassID: classID, Results: make([]ImportResult, 0, len(rows))}
	for i, row := range rows {
		row.AssignedClass = classID
		res := ImportResult{Row: i + 2 /* header */, StudentID: row.StudentID}

		if len(row.Errors) > 0 {
			res.Errors = m.rowErrors(row)
			report.Skipped++
			report.Results = append(report.Results, res)
			continue
		}

		s, err := m.Enroll(ctx, row.NewStudent)
		switch {
		case err == nil:
			res.Student = &s
			report.Enrolled++
		case class.IsRosterError(err, class.CapacityExceeded):
			report.CapacityReached = true
			report.Skipped += len(rows) - i
			res.Errors = map[string]string{"assigned_class": err.Error()}
			report.Results = append(report.Results, res)
			m.logImport(report)
			return report, nil
		default:
			fldErrs, ok := m.fieldErrors(err)
			if !ok {
				return report, err
			}
			res.Errors = fldErrs
			report.Skipped++
		}
		report.Results = append(report.Results, res)
	}
	m.logImport(report)
	return report, nil
}

func (m *Manager) logImport(report ImportReport) {
	m.logger.Info("roster imported", map[string]interface{}{
		"class_id":         report.ClassID,
		"enrolled":         report.Enrolled,
		"skipped":          report.Skipped,
		"capacity_reached": report.CapacityReached,
	})
}

// rowErrors reports the unreadable cells of a row along with its other invalid fields.
func (m *Manager) rowErrors(row ImportRow) map[string]string {
	fldErrs := make(map[string]string, len(row.Errors))
	if err := row.NewStudent.Validate(m.validate); err != nil {
		if errs, ok := m.fieldErrors(err); ok {
			for fld, msg := range errs {
				fldErrs[fld] = msg
			}
		}
	}
	for fld, msg := range row.Errors {
		fldErrs[fld] = msg
	}
	return fldErrs
}

// fieldErrors extracts {field: message} from validation errors.
func (m *Manager) fieldErrors(err error) (map[string]string, bool) {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		return vErr.FieldErrors(), true
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		return core.TranslateValidationErrors(vErrs, m.translator), true
	}
	return nil, false
}
