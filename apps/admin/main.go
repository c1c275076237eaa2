package main

import (
	"context"
	"log"
	"os"

	dig_container "github.com/trezcool/schoolcrm/apps/api/di/dig"
	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/enrollment"
)

var logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

func main() {
	cli := commandLine{out: os.Stdout}

	// migrations run before the stores are set up, since setting them up migrates up
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		cli.migrate = migrateFunc(core.NewConfig())
		exit(cli.run(os.Args))
		return
	}

	var runErr error
	c := dig_container.New()
	errAndDie(c.Invoke(func(manager *enrollment.Manager, closersParam dig_container.ClosersParam) {
		defer func() {
			for _, closer := range closersParam.Closers {
				if err := closer.Close(context.Background()); err != nil {
					logger.Printf("closing %s: %v", closer.Name, err)
				}
			}
		}()
		cli.manager = manager
		runErr = cli.run(os.Args)
	}))
	exit(runErr)
}

func exit(err error) {
	if err == nil {
		return
	}
	if err != errHelp {
		logger.Printf("\nerror: %s\n", err)
	}
	os.Exit(1)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
