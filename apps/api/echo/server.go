package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/rbac"
	"github.com/adribv/edutool/core/staff"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Translator    ut.Translator
		ActionPolicy  rbac.ActionPolicy
		StaffSvc      staff.Service
		PermissionSvc permission.Service
		ActivitySvc   activity.Service
	}

	Server struct {
		*http.Server
		app      *echo.Echo
		registry *prometheus.Registry
		shutdown chan os.Signal
		errors   chan error
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		registry: prometheus.NewRegistry(),
		shutdown: make(chan os.Signal, 1),
		errors:   make(chan error, 1),
	}
	s.Server = &http.Server{
		Addr:    deps.Conf.Server.Host,
		Handler: s.app,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Debug {
		s.app.Logger.SetLevel(log.DEBUG)
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.app.Group("/api")
	api.GET("/health", health(conf))

	gt := newGate(deps.PermissionSvc, deps.ActivitySvc, deps.ActionPolicy, conf.RBAC.SoftLookupErrors, deps.Logger, s.registry)
	authed := api.Group("", middleware.JWTWithConfig(jwtConfig(conf)))

	registerPermissionAPI(authed, gt, deps.PermissionSvc, deps.StaffSvc, deps.Logger)
	registerActivityAPI(authed, gt, deps.ActivitySvc, deps.StaffSvc, deps.Logger)
}

// Start listens until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

func health(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return respond(ctx, http.StatusOK, echo.Map{
			"status":  "ok",
			"app":     conf.AppName,
			"build":   conf.Build,
			"storage": conf.StorageEngine,
		})
	}
}
