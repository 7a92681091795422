package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/anhphanck/social-app/internal/config"
	"github.com/anhphanck/social-app/internal/database"
	"github.com/anhphanck/social-app/internal/gateway"
	"github.com/anhphanck/social-app/internal/stats"
)

type SocialApp struct {
	log            *log.Logger
	db             database.SocialRepository
	mux            *http.Server
	gw             *gateway.Gateway
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string
	uploadDir      string
	baseURL        string
}

func NewSocialApp(mux *http.ServeMux, logger *log.Logger, gw *gateway.Gateway, db database.SocialRepository, sp stats.StatsProvider, cfg *config.Config) *SocialApp {
	s := &SocialApp{
		log:            logger,
		db:             db,
		gw:             gw,
		stats:          sp,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		uploadDir:      cfg.UploadDir,
		baseURL:        cfg.BaseURL,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/users", s.authMiddleware(s.listUsers))
	mux.HandleFunc("GET /api/chats/conversation/{userA}/{userB}", s.authMiddleware(s.getConversation))
	mux.HandleFunc("GET /api/chats/unreads", s.authMiddleware(s.getUnreadCounts))
	mux.HandleFunc("POST /api/chats/mark-read", s.authMiddleware(s.markConversationRead))
	mux.HandleFunc("DELETE /api/chats/messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("POST /api/chats/upload", s.authMiddleware(s.uploadAttachment))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))
	mux.HandleFunc("GET /ws", s.serveWs)
	mux.HandleFunc("GET /healthz", s.healthCheck)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SocialApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SocialApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
