package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/config"
	"github.com/jonathan/voice-coach/internal/server/middleware"
	"github.com/jonathan/voice-coach/internal/server/ratelimit"
	"github.com/jonathan/voice-coach/internal/transcription"
	"github.com/jonathan/voice-coach/internal/types"
)

// defaultMaxUploadBytes bounds request bodies carrying audio.
const defaultMaxUploadBytes = 32 << 20

// Coach is the LLM coaching surface used outside of assessments.
type Coach interface {
	ScoreAnswer(ctx context.Context, sessionType types.SessionType, question, answer string) (*types.SingleScoreFeedback, error)
	SummarizeProgress(ctx context.Context, history *types.UserHistory) (*types.ProgressSummary, error)
	CreateStudyPlan(ctx context.Context, record *types.SessionRecord) (*types.StudyPlan, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	cfg         Config
	db          DBClient
	assessments *assessment.Service
	coach       Coach
	transcriber transcription.Client
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	authHandler *AuthHandler
	now         func() time.Time
}

// Config holds server configuration
type Config struct {
	Port int
	// CallTimeout bounds each direct transcription or LLM call. Zero disables it.
	CallTimeout    time.Duration
	MaxUploadBytes int64
	// RateLimit defaults to ratelimit.LoadConfig() when nil.
	RateLimit *ratelimit.Config
}

// Deps are the collaborators the server routes to.
type Deps struct {
	DB          DBClient
	Assessments *assessment.Service
	Coach       Coach
	Transcriber transcription.Client
	JWT         *config.JWTConfig
	Password    *config.PasswordConfig
	Revocations RevocationList
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.DB == nil || deps.Assessments == nil || deps.Coach == nil || deps.Transcriber == nil {
		return nil, fmt.Errorf("server requires a database, assessment service, coach and transcriber")
	}
	if deps.JWT == nil || deps.Password == nil {
		return nil, fmt.Errorf("server requires JWT and password configuration")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}

	s := &Server{
		cfg:         cfg,
		db:          deps.DB,
		assessments: deps.Assessments,
		coach:       deps.Coach,
		transcriber: deps.Transcriber,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		jwtService:  NewJWTService(deps.JWT, deps.Revocations),
		userService: NewUserService(deps.DB, deps.Password),
		now:         time.Now,
	}
	s.authHandler = NewAuthHandler(s.userService, s.jwtService, s.assessments)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second, // Analysis makes several external calls
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

func (s *Server) routes() *http.ServeMux {
	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Practice context
	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	mux.HandleFunc("POST /auth/logout", s.authHandler.Logout)
	mux.Handle("GET /auth/me", protected(s.authHandler.Me))
	mux.Handle("PUT /auth/password", protected(s.authHandler.UpdatePassword))

	// History
	mux.Handle("GET /api/user/{email}", protected(s.handleGetUserHistory))
	mux.Handle("POST /api/session", protected(s.handleAppendSession))
	mux.Handle("GET /api/sessions", protected(s.handleListSessions))
	mux.Handle("GET /api/sessions/{id}", protected(s.handleGetSession))
	mux.Handle("GET /api/sessions/{id}/report", protected(s.handleSessionReport))

	// Coaching
	mux.Handle("POST /api/transcribe", protected(s.handleTranscribe))
	mux.Handle("POST /api/feedback/answer", protected(s.handleAnswerFeedback))
	mux.Handle("POST /api/sessions/{id}/study-plan", protected(s.handleStudyPlan))
	mux.Handle("POST /api/progress/summary", protected(s.handleProgressSummary))

	// Assessments
	mux.Handle("POST /api/assessments", protected(s.handleStartAssessment))
	mux.Handle("GET /api/assessments/{id}", protected(s.handleGetAssessment))
	mux.Handle("POST /api/assessments/{id}/stages/{stage}", protected(s.handleSubmitStage))
	mux.Handle("POST /api/assessments/{id}/analyze", protected(s.handleAnalyze))
	mux.Handle("POST /api/assessments/{id}/analyze/stream", protected(s.handleAnalyzeStream))
	mux.Handle("POST /api/assessments/{id}/terminate", protected(s.handleTerminate))
	mux.Handle("DELETE /api/assessments/{id}", protected(s.handleCancelAssessment))

	return mux
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()

	log.Println("Server stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps server-sent events working through the logging middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %d in %v (%s)", r.Method, r.URL.Path, rec.status, time.Since(start), r.RemoteAddr)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callContext bounds a direct external call made on behalf of r.
func (s *Server) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.cfg.CallTimeout)
}

var requestValidator = validator.New()

// decodeBody reads a JSON body into dst, writing a 400 on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		errorJSON(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// decodeJSON reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeBody(w, r, dst) {
		return false
	}
	if err := requestValidator.Struct(dst); err != nil {
		errorJSON(w, http.StatusBadRequest, extractValidationErrors(err))
		return false
	}
	return true
}

// jsonResponse writes a JSON response
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorJSON writes an error JSON response
func errorJSON(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status and writes it. Server-side failures are logged.
func writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[server] request failed: %v", err)
	}
	errorJSON(w, status, publicMessage(err))
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.5)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d", info.Limit, info.Remaining)

	jsonResponse(w, http.StatusTooManyRequests, response)
}
