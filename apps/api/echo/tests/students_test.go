package tests

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/tests/testutil"
)

func enrollBody(studentID, name, classID string) []byte {
	return []byte(fmt.Sprintf(`{
		"student_id": %q,
		"name": %q,
		"gender": "female",
		"dob": "2012-06-01",
		"contact_details": {"phone": "+243 810 000 000", "email": "student@school.test"},
		"assigned_class": %q
	}`, studentID, name, classID))
}

func Test_studentApi_studentEnroll(t *testing.T) {
	app := setup(t)
	tchr := testutil.CreateTeacher(t, app.teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, app.classes, "Grade 1", tchr, 100, 2)
	testutil.EnrollStudent(t, app.store, "STD-001", "John Doe", core.GenderMale, c)

	roster := func(t *testing.T) []string {
		got, err := app.classes.GetClass(context.Background(), c.ID, false)
		require.NoError(t, err)
		return got.Students
	}

	tests := []httpTest{
		{
			name:     "missing email",
			method:   http.MethodPost,
			path:     "/v1/students",
			body:     []byte(`{"student_id": "STD-009", "name": "No Mail", "gender": "male", "dob": "2012-06-01", "contact_details": {"phone": "1"}, "assigned_class": "` + c.ID + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"contact_details.email": "this field is required"}`),
		},
		{
			name:     "invalid gender",
			method:   http.MethodPost,
			path:     "/v1/students",
			body:     []byte(`{"student_id": "STD-009", "name": "X", "gender": "robot", "dob": "2012-06-01", "contact_details": {"phone": "1", "email": "x@school.test"}, "assigned_class": "` + c.ID + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"gender": "gender must be one of [male female other]"}`),
		},
		{
			name:     "unknown class",
			method:   http.MethodPost,
			path:     "/v1/students",
			body:     enrollBody("STD-009", "Lost Student", "404"),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"assigned_class": "class not found"}`),
		},
		{
			name:     "duplicate student_id",
			method:   http.MethodPost,
			path:     "/v1/students",
			body:     enrollBody("STD-001", "Twin", c.ID),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_id": "a student with this student_id already exists"}`),
		},
	}
	runHTTPTests(t, app, tests)
	assert.Len(t, roster(t), 1)

	t.Run("last seat", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/students", enrollBody("STD-002", "Jane Doe", c.ID))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got student.Student
		unmarshal(t, rec, &got)
		assert.Equal(t, student.ClassRef{ID: c.ID, Name: "Grade 1"}, got.AssignedClass)
		assert.Contains(t, roster(t), got.ID)
		assert.Len(t, app.mailer.SentMessages(), 1)
	})

	t.Run("class full", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/students", enrollBody("STD-003", "Late Comer", c.ID))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, map[string]interface{}{
				"error":        "class has reached the maximum number of students (2/2)",
				"kind":         class.CapacityExceeded,
				"class_id":     c.ID,
				"enrolled":     2,
				"max_students": 2,
			}),
		}, rec)
		assert.Len(t, roster(t), 2)

		rec = app.do(http.MethodGet, "/v1/students?name=late")
		assert.JSONEq(t, `{"students": [], "total": 0}`, rec.Body.String())
	})
}

func Test_studentApi_concurrentEnroll(t *testing.T) {
	app := setup(t)
	tchr := testutil.CreateTeacher(t, app.teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, app.classes, "Grade 1", tchr, 100, 1)

	const n = 10
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := app.do(http.MethodPost, "/v1/students", enrollBody(fmt.Sprintf("STD-%03d", i), "Racer", c.ID))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func Test_studentApi_studentQuery(t *testing.T) {
	app := setup(t)
	tchr := testutil.CreateTeacher(t, app.teachers, "TCH-001", "Ada Lovelace", 1500)
	c := testutil.CreateClass(t, app.classes, "Grade 1", tchr, 100, 10)
	testutil.EnrollStudent(t, app.store, "STD-003", "Charlie Brown", core.GenderMale, c)
	testutil.EnrollStudent(t, app.store, "STD-001", "Alice Smith", core.GenderFemale, c)
	testutil.EnrollStudent(t, app.store, "STD-002", "Bob Smith", core.GenderMale, c)

	type page struct {
		Students []student.Student `json:"students"`
		Total    int               `json:"total"`
	}
	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantTotal int
	}{
		{name: "default order by name", wantIDs: []string{"STD-001", "STD-002", "STD-003"}, wantTotal: 3},
		{name: "search", query: "?name=smith", wantIDs: []string{"STD-001", "STD-002"}, wantTotal: 2},
		{name: "sort by student_id desc", query: "?sort=student_id&order=desc", wantIDs: []string{"STD-003", "STD-002", "STD-001"}, wantTotal: 3},
		{name: "unknown sort field", query: "?sort=password", wantIDs: []string{"STD-001", "STD-002", "STD-003"}, wantTotal: 3},
		{name: "paginated", query: "?limit=1&page=3", wantIDs: []string{"STD-003"}, wantTotal: 3},
		{name: "page out of range", query: "?limit=100&page=922337203685477590", wantIDs: []string{}, wantTotal: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodGet, "/v1/students"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			var got page
			unmarshal(t, rec, &got)
			ids := make([]string, 0, len(got.Students))
			for _, s := range got.Students {
				ids = append(ids, s.StudentID)
				assert.Equal(t, "Grade 1", s.AssignedClass.Name)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTotal, got.Total)
		})
	}
}

func Test_studentApi_detail(t *testing.T) {
	app := setup(t)
	tchr := testutil.CreateTeacher(t, app.teachers, "TCH-001", "Ada Lovelace", 1500)
	c1 := testutil.CreateClass(t, app.classes, "Grade 1", tchr, 100, 2)
	c2 := testutil.CreateClass(t, app.classes, "Grade 2", tchr, 100, 1)
	s1 := testutil.EnrollStudent(t, app.store, "STD-001", "John Doe", core.GenderMale, c1)
	s2 := testutil.EnrollStudent(t, app.store, "STD-002", "Jane Doe", core.GenderFemale, c1)

	roster := func(t *testing.T, classID string) []string {
		got, err := app.classes.GetClass(context.Background(), classID, false)
		require.NoError(t, err)
		return got.Students
	}

	tests := []httpTest{
		{
			name:     "retrieve unknown",
			method:   http.MethodGet,
			path:     "/v1/students/404",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name:     "update cannot move class",
			method:   http.MethodPut,
			path:     "/v1/students/" + s1.ID,
			body:     enrollBody("STD-001", "John Doe", c2.ID),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: `json: unknown field "student_id"`}),
		},
		{
			name:     "transfer to unknown class",
			method:   http.MethodPost,
			path:     "/v1/students/" + s1.ID + "/transfer",
			body:     []byte(`{"assigned_class": "404"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"assigned_class": "class not found"}`),
		},
		{
			name:     "transfer unknown student",
			method:   http.MethodPost,
			path:     "/v1/students/404/transfer",
			body:     []byte(`{"assigned_class": "` + c2.ID + `"}`),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name:     "delete unknown",
			method:   http.MethodDelete,
			path:     "/v1/students/404",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("update", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/students/"+s1.ID, []byte(`{
			"name": "Johnny Doe",
			"gender": "male",
			"dob": "2012-06-01",
			"contact_details": {"phone": "+243 810 000 009", "email": "johnny@school.test"}
		}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got student.Student
		unmarshal(t, rec, &got)
		assert.Equal(t, "Johnny Doe", got.Name)
		assert.Equal(t, "STD-001", got.StudentID)
		assert.Equal(t, c1.ID, got.AssignedClass.ID)
	})

	t.Run("transfer", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/students/"+s1.ID+"/transfer", []byte(`{"assigned_class": "`+c2.ID+`"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got student.Student
		unmarshal(t, rec, &got)
		assert.Equal(t, student.ClassRef{ID: c2.ID, Name: "Grade 2"}, got.AssignedClass)
		assert.Equal(t, []string{s2.ID}, roster(t, c1.ID))
		assert.Equal(t, []string{s1.ID}, roster(t, c2.ID))
	})

	t.Run("transfer to full class", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/students/"+s2.ID+"/transfer", []byte(`{"assigned_class": "`+c2.ID+`"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, []string{s2.ID}, roster(t, c1.ID))
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/students/"+s2.ID)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, roster(t, c1.ID))
		rec = app.do(http.MethodGet, "/v1/students/"+s2.ID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
