package internal

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"flk-api/internal/auth"
	"flk-api/internal/config"
	"flk-api/internal/database"
	"flk-api/internal/handlers"
	"flk-api/internal/nav"
	"flk-api/pkg/importer"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// NavLookup is the part of the NAV client the handlers depend on.
type NavLookup interface {
	Lookup(ctx context.Context, entitySet, field, value string) ([]nav.Record, error)
}

type Server struct {
	DB         *sql.DB
	Router     *chi.Mux
	Config     *config.Config
	Tables     database.Tables
	NAV        NavLookup
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Log        *logrus.Logger

	validate *validator.Validate
	formLoc  *time.Location
}

// route is one entry of the declarative routing table.
type route struct {
	method  string
	pattern string
	handler http.HandlerFunc
	write   bool
}

// NewServer wires the router around an already opened connection pool.
func NewServer(db *sql.DB, cfg *config.Config, navClient NavLookup, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		DB:       db,
		Router:   chi.NewRouter(),
		Config:   cfg,
		Tables:   database.NewTables(cfg.ReportTable, cfg.ItemTable),
		NAV:      navClient,
		Metrics:  NewMetrics(),
		Log:      logger,
		validate: newValidator(),
	}

	loc, err := cfg.FormLocation()
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.FormTimezone).Warn("unknown form timezone, using UTC")
		loc = time.UTC
	}
	s.formLoc = loc

	s.Router.Use(corsHeaders)
	s.Router.Use(middleware.RequestID)
	s.Router.Use(requestLogger(logger))
	s.Router.Use(middleware.Recoverer)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.NotFound(notFound)
	s.Router.MethodNotAllowed(notFound)

	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	if o, ok := navClient.(interface{ SetObserver(nav.Observer) }); ok {
		o.SetObserver(s.Metrics)
	}

	if cfg.AuthEnabled {
		s.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	}

	s.Router.Group(func(r chi.Router) {
		if s.JWTManager != nil {
			r.Use(auth.AuthMiddleware(s.JWTManager))
		}
		s.mountRoutes(r)
	})

	return s
}

func (s *Server) routes() []route {
	imports := handlers.NewImportItemsHandler(s, importer.DefaultMapping())

	return []route{
		{http.MethodGet, "/api/get-flk", s.listReports, false},
		{http.MethodGet, "/api/get-flk-norep", s.listReportsByType(1), false},
		{http.MethodGet, "/api/get-flk-noseri", s.listReportsByType(2), false},
		{http.MethodGet, "/api/get-rep-seri-by-cus", s.repSeriByCustomer(false), false},
		{http.MethodGet, "/api/get-rep-seri-by-cus-edit", s.repSeriByCustomer(true), false},
		{http.MethodGet, "/api/get-flk-one-by-id", s.getReport, false},
		{http.MethodGet, "/api/get-brg", s.listItems, false},
		{http.MethodGet, "/api/nav-data", s.navData(s.Config.NAV.SerialEntitySet, "Serial_No"), false},
		{http.MethodGet, "/api/nav-data-noseri", s.navData(s.Config.NAV.CustomerEntitySet, "No"), false},
		{http.MethodPost, "/api/create-flk", s.createReport, true},
		{http.MethodPost, "/api/create-brg", s.createItems, true},
		{http.MethodPost, "/api/edit-flk", s.editReport, true},
		{http.MethodPost, "/api/import-brg", imports.ImportItems, true},
		{http.MethodPost, "/api/export-excel", s.exportExcel, false},
		{http.MethodPost, "/uploads", s.uploadFile, true},
		{http.MethodGet, "/uploads/{name}", s.serveUpload, false},
	}
}

func (s *Server) mountRoutes(r chi.Router) {
	for _, rt := range s.routes() {
		var h http.Handler = rt.handler
		if rt.write && s.JWTManager != nil {
			h = auth.MustRole(auth.RoleEditor, auth.RoleAdmin)(h)
		}
		r.Method(rt.method, rt.pattern, h)
	}
}

// Close releases the connection pool.
func (s *Server) Close(ctx context.Context) error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
