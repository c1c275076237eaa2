package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/schoolcrm/apps/api/echo"
	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/analytics"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
	emailsvc "github.com/trezcool/schoolcrm/services/email"
	locksvc "github.com/trezcool/schoolcrm/services/lock"
	logsvc "github.com/trezcool/schoolcrm/services/logger"
	inmemdb "github.com/trezcool/schoolcrm/storage/database/inmem"
)

type testApp struct {
	*Server
	teachers teacher.Repository
	classes  class.Repository
	store    enrollment.Store
	mailer   *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "SchoolCRM",
		DefaultFromEmail: "noreply@school.test",
		Server: core.ServerConfig{
			DisableReqLogs: true,
			RequestTimeout: 5 * time.Second,
		},
	}
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "API : ", log.LstdFlags), conf)
	logger.Enable(false)
	validate, translator := core.NewValidator()

	// set up DB & repos
	db := inmemdb.NewDB()
	app := &testApp{
		teachers: inmemdb.NewTeacherRepository(db),
		classes:  inmemdb.NewClassRepository(db),
		store:    inmemdb.NewEnrollmentStore(db),
		mailer:   emailsvc.NewConsoleServiceMock(conf, logger),
	}

	// set up server
	app.Server = NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			Conf:       conf,
			Logger:     logger,
			Translator: translator,
			TeacherSvc: teacher.NewService(app.teachers, validate),
			ClassSvc:   class.NewService(app.classes, app.teachers, validate),
			StudentSvc: student.NewService(inmemdb.NewStudentRepository(db), validate),
			Manager: enrollment.NewManager(
				app.store, app.teachers, locksvc.NewLocal(), validate, translator, app.mailer, logger, true,
			),
			Analytics: analytics.NewService(app.classes, app.teachers),
		},
	)
	return app
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func (app *testApp) do(method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code)
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestHome(t *testing.T) {
	app := setup(t)
	rec := app.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to SchoolCRM API!", rec.Body.String())
}
