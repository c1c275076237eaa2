package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/storage/database"
)

func migrateFunc(conf *core.Config) func(command string, args ...string) error {
	return func(command string, args ...string) error {
		if conf.Database.Engine != core.EnginePostgres {
			return errors.Errorf("migrations only apply to the %s engine (got %s)", core.EnginePostgres, conf.Database.Engine)
		}
		if err := database.CreateIfNotExist(conf); err != nil {
			return err
		}
		db, err := database.Open(conf)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.RunMigrations(db, command, args...)
	}
}
