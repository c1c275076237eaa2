package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/services/spreadsheet"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	manager *enrollment.Manager
	migrate func(command string, args ...string) error
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                     - run a database migration command (up, down, status, ...)")
	fmt.Println("  importstudents -class ID -file ROSTER.xlsx - enroll the students of a roster sheet into a class")
	fmt.Println("  capacity -class ID -max N                  - set the maximum number of students of a class")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("importstudents", flag.ContinueOnError)
	importClass := importCmd.String("class", "", "The class ID.")
	importFile := importCmd.String("file", "", "Path of the XLSX roster: student_id, name, gender, dob, phone, email.")

	capacityCmd := flag.NewFlagSet("capacity", flag.ContinueOnError)
	capacityClass := capacityCmd.String("class", "", "The class ID.")
	capacityMax := capacityCmd.Int("max", 0, "The new maximum number of students.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2], args[3:]...)
	case "importstudents":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importClass == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importStudents(*importClass, *importFile)
	case "capacity":
		if err := capacityCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *capacityClass == "" || *capacityMax == 0 {
			capacityCmd.Usage()
			return errHelp
		}
		return cli.setCapacity(*capacityClass, *capacityMax)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) importStudents(classID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := spreadsheet.ParseRoster(f)
	if err != nil {
		return err
	}
	report, err := cli.manager.ImportRoster(context.Background(), classID, rows)
	if err != nil {
		return err
	}
	return cli.print(report)
}

func (cli *commandLine) setCapacity(classID string, max int) error {
	c, err := cli.manager.SetClassCapacity(context.Background(), classID, class.SetCapacity{MaxStudents: max})
	if err != nil {
		return err
	}
	return cli.print(c)
}

func (cli *commandLine) print(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
