package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/adribv/edutool/apps/api/echo"
	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
	emailsvc "github.com/adribv/edutool/services/email"
	logsvc "github.com/adribv/edutool/services/logger"
	"github.com/adribv/edutool/storage"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories spreads the opened storage over the container.
type Repositories struct {
	dig.Out
	Storage     *storage.Repositories
	Staff       staff.Repository
	Permissions permission.Repository
	Activities  activity.Repository
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Translator    ut.Translator
	ActionPolicy  rbac.ActionPolicy
	StaffSvc      staff.Service
	PermissionSvc permission.Service
	ActivitySvc   activity.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Mongo.ConnectTimeout+conf.Server.ShutdownTimeout)
	defer cancel()

	repos, err := storage.Open(ctx, conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.StorageEngine, err), err)
	}
	return Repositories{
		Storage:     repos,
		Staff:       repos.Staff,
		Permissions: repos.Permissions,
		Activities:  repos.Activities,
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newActionPolicy(conf *core.Config) (rbac.ActionPolicy, error) {
	return rbac.DefaultActionPolicy().WithOverrides(conf.RBAC.ActionPolicy)
}

func newPermissionService(
	repo permission.Repository,
	staffSvc staff.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
) permission.Service {
	return permission.NewService(repo, staffSvc, mailSvc, validate)
}

func newActivityService(
	repo activity.Repository,
	staffSvc staff.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
) activity.Service {
	return activity.NewService(repo, staffSvc, mailSvc, validate)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Translator:    p.Translator,
		ActionPolicy:  p.ActionPolicy,
		StaffSvc:      p.StaffSvc,
		PermissionSvc: p.PermissionSvc,
		ActivitySvc:   p.ActivitySvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newActionPolicy))
	must(c.Provide(staff.NewService))
	must(c.Provide(newPermissionService))
	must(c.Provide(newActivityService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
