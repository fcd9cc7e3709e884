package main

import (
	"github.com/pkg/errors"

	"github.com/adribv/edutool/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrate needs the postgres storage engine")
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
