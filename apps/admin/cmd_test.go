package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	locksvc "github.com/trezcool/schoolcrm/services/lock"
	logsvc "github.com/trezcool/schoolcrm/services/logger"
	"github.com/trezcool/schoolcrm/services/spreadsheet"
	inmemdb "github.com/trezcool/schoolcrm/storage/database/inmem"
	"github.com/trezcool/schoolcrm/tests/testutil"
)

type env struct {
	cli     *commandLine
	out     *bytes.Buffer
	classes class.Repository
	store   enrollment.Store
	class   class.Class
}

func setup(t *testing.T) *env {
	conf := &core.Config{Env: "TEST", AppName: "SchoolCRM"}
	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", 0), conf)
	logger.Enable(false)
	validate, translator := core.NewValidator()

	// set up DB & repos
	db := inmemdb.NewDB()
	teachers := inmemdb.NewTeacherRepository(db)
	e := &env{
		out:     new(bytes.Buffer),
		classes: inmemdb.NewClassRepository(db),
		store:   inmemdb.NewEnrollmentStore(db),
	}
	tchr := testutil.CreateTeacher(t, teachers, "TCH-001", "Ada Lovelace", 1500)
	e.class = testutil.CreateClass(t, e.classes, "Grade 1", tchr, 100, 2)

	// start CLI
	e.cli = &commandLine{
		manager: enrollment.NewManager(e.store, teachers, locksvc.NewLocal(), validate, translator, nil, logger, false),
		out:     e.out,
	}
	return e
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	e := setup(t)

	e.cli.migrate = func(command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	runCLITests(t, e.cli, tests)
}

func Test_migrateFunc_otherEngine(t *testing.T) {
	migrate := migrateFunc(&core.Config{Database: core.DatabaseConfig{Engine: core.EngineMongo}})
	err := migrate("up")
	if assert.Error(t, err) {
		assert.Equal(t, "migrations only apply to the postgres engine (got mongodb)", err.Error())
	}
}

func Test_commandLine_capacity(t *testing.T) {
	e := setup(t)
	testutil.EnrollStudent(t, e.store, "STD-001", "John Doe", core.GenderMale, e.class)
	testutil.EnrollStudent(t, e.store, "STD-002", "Jane Doe", core.GenderFemale, e.class)

	tests := []cliTest{
		{name: "no args", args: []string{"capacity"}, wantErr: errHelp},
		{name: "no max", args: []string{"capacity", "-class", e.class.ID}, wantErr: errHelp},
		{name: "unknown class", args: []string{"capacity", "-class", "404", "-max", "3"}, wantErr: class.ErrNotFound},
		{name: "below enrollment", args: []string{"capacity", "-class", e.class.ID, "-max", "1"}, wantErrStr: "max students cannot be less than the current number of students (2) enrolled"},
		{name: "valid", args: []string{"capacity", "-class", e.class.ID, "-max", "30"}},
	}
	runCLITests(t, e.cli, tests)

	c, err := e.classes.GetClass(context.Background(), e.class.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 30, c.MaxStudents)
	assert.Contains(t, e.out.String(), `"max_students": 30`)
}

func Test_commandLine_importStudents(t *testing.T) {
	e := setup(t)

	roster := class.Class{Name: "Grade 1", Year: 2024}
	for i := 1; i <= 3; i++ {
		roster.Roster = append(roster.Roster, class.RosterEntry{
			StudentID:      fmt.Sprintf("STD-00%d", i),
			Name:           fmt.Sprintf("Student %d", i),
			Gender:         core.GenderFemale,
			DOB:            core.NewDate(2012, time.June, i),
			ContactDetails: core.ContactDetails{Phone: "+243 810 000 000", Email: fmt.Sprintf("student%d@school.test", i)},
		})
	}
	roster.Roster[1].ContactDetails.Email = "" // invalid row

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, spreadsheet.ExportRoster(f, roster))
	require.NoError(t, f.Close())

	tests := []cliTest{
		{name: "no args", args: []string{"importstudents"}, wantErr: errHelp},
		{name: "no file", args: []string{"importstudents", "-class", e.class.ID}, wantErr: errHelp},
		{name: "unknown class", args: []string{"importstudents", "-class", "404", "-file", path}, wantErr: class.ErrNotFound},
		{name: "valid", args: []string{"importstudents", "-class", e.class.ID, "-file", path}},
	}
	runCLITests(t, e.cli, tests)

	var report enrollment.ImportReport
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &report))
	assert.Equal(t, 2, report.Enrolled)
	assert.False(t, report.CapacityReached)
	if assert.Len(t, report.Results, 3) {
		assert.Equal(t, map[string]string{"contact_details.email": "this field is required"}, report.Results[1].Errors)
	}

	c, err := e.classes.GetClass(context.Background(), e.class.ID, false)
	require.NoError(t, err)
	assert.Len(t, c.Students, 2)
}
