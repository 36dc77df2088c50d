// Package httpapi is the request boundary of the registry auth service: it
// exposes the credential lifecycle over HTTP/JSON and maps service outcomes
// to transport responses.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/registryauth/internal/logging"
	"github.com/dmitrijs2005/registryauth/internal/server/models"
	"github.com/dmitrijs2005/registryauth/internal/server/services"
)

// userService is the slice of the service layer the boundary needs.
type userService interface {
	Register(ctx context.Context, username string, password string) (*models.User, error)
	Login(ctx context.Context, username string, password string) (*services.TokenPair, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	GetActiveUser(ctx context.Context, username string) (*models.User, error)
}

type Server struct {
	address   string
	users     userService
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, us *services.UserService, secretKey string) (*Server, error) {
	return &Server{
		address:   address,
		logger:    l.With("module", "http_server"),
		users:     us,
		jwtSecret: []byte(secretKey),
	}, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// public
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /token", s.handleLogin)
	mux.HandleFunc("POST /refresh", s.handleRefresh)

	// protected
	mux.Handle("GET /users/me", s.requireAuth(http.HandlerFunc(s.handleMe)))
	mux.Handle("GET /system/status", s.requireAuth(http.HandlerFunc(s.handleStatus)))

	return s.corsMiddleware(mux)
}

func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
