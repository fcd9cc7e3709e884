package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/staff"
	logsvc "github.com/adribv/edutool/services/logger"
	"github.com/adribv/edutool/storage"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up storage
	ctx, cancel := context.WithTimeout(context.Background(), conf.Mongo.ConnectTimeout+conf.Server.ShutdownTimeout)
	repos, err := storage.Open(ctx, conf, logger)
	cancel()
	errAndDie(err)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	// start CLI
	staffSvc := staff.NewService(repos.Staff)
	cli := commandLine{
		conf:     conf,
		db:       repos.SQL,
		out:      os.Stdout,
		validate: validate,
		staffSvc: staffSvc,
		permSvc:  permission.NewService(repos.Permissions, staffSvc, nil, validate),
	}
	err = cli.run(os.Args)
	if cerr := repos.Close(); cerr != nil {
		logger.Error("closing storage", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
