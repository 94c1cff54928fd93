package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/kipimo/core"
	"github.com/trezcool/kipimo/core/checkin"
	"github.com/trezcool/kipimo/core/invitation"
	"github.com/trezcool/kipimo/core/notification"
	"github.com/trezcool/kipimo/core/okr"
	"github.com/trezcool/kipimo/core/org"
	"github.com/trezcool/kipimo/core/report"
	"github.com/trezcool/kipimo/core/user"
	metricsvc "github.com/trezcool/kipimo/services/metrics"
)

type (
	// JobRunner triggers scheduler jobs on demand.
	JobRunner interface {
		Jobs() []string
		RunNow(ctx context.Context, name string, orgIDs ...string) error
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Metrics        *metricsvc.Metrics
		DisableReqLogs bool

		UserSvc         user.Service
		OrgSvc          org.Service
		OKRSvc          okr.Service
		CheckInSvc      checkin.Service
		NotificationSvc notification.Service
		InvitationSvc   invitation.Service
		ReportSvc       report.Service
		Jobs            JobRunner
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.Middleware())
		s.app.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	g := s.app.Group("/api")
	authed := []echo.MiddlewareFunc{
		middleware.JWTWithConfig(appJWTConfig),
		ctxUserMiddleware(s.deps.UserSvc),
		rbacMiddleware(),
	}

	registerAuthAPI(g, authed, s.deps.UserSvc, s.deps.OrgSvc, newLoginLimiter(conf.Server.LoginRateLimit, conf.Server.LoginRateBurst))
	registerUserAPI(g.Group("", authed...), s.deps.UserSvc)
	registerOrgAPI(g.Group("", authed...), s.deps.OrgSvc, s.deps.UserSvc)
	registerOKRAPI(g.Group("", authed...), s.deps.OKRSvc, s.deps.CheckInSvc)
	registerNotificationAPI(g.Group("", authed...), s.deps.NotificationSvc)
	registerInvitationAPI(g, authed, s.deps.InvitationSvc)
	registerReportAPI(g.Group("", authed...), s.deps.ReportSvc, s.deps.OrgSvc)
	registerJobAPI(g.Group("", authed...), s.deps.Jobs)
}

// Start listens on the configured address; failures are sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the server owner to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
