package devserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Config controls a development [Server].
type Config struct {
	// Prefix is the path every route is mounted under. Default "/api/v1".
	Prefix     string
	SigningKey []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RotateRefresh issues a new refresh token on every refresh and blacklists
	// the old one. When false the refresh response carries only "access".
	RotateRefresh bool

	Redis       redis.UniversalClient
	RedisPrefix string

	MaxLoginAttempts int
	LoginCooldown    time.Duration

	BcryptCost int
	Now        func() time.Time
}

// ResetTicket holds what a password reset email would carry.
type ResetTicket struct {
	OTP          string
	UUIDB64      string
	RefreshToken string
}

type user struct {
	id           int
	username     string
	fullName     string
	email        string
	passwordHash []byte
	otp          string
}

// Server is an in-memory account API with the same endpoints and response
// shapes as the production backend.
type Server struct {
	cfg     Config
	tokens  *jwt.Manager
	limiter *rate.Limiter
	router  *mux.Router

	mu     sync.Mutex
	nextID int
	users  map[string]*user
	outbox map[string]ResetTicket
}

// New validates cfg and returns a ready Server.
func New(cfg Config) (*Server, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("signing key required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("redis client required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/api/v1"
	}
	cfg.Prefix = "/" + strings.Trim(cfg.Prefix, "/")
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "devapi"
	}
	if cfg.LoginCooldown <= 0 {
		cfg.LoginCooldown = 15 * time.Minute
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    cfg.SigningKey,
	})
	if err != nil {
		return nil, err
	}
	tokens.WithClock(cfg.Now)

	s := &Server{
		cfg:    cfg,
		tokens: tokens,
		limiter: rate.New(cfg.Redis, rate.Config{
			Prefix:                cfg.RedisPrefix,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      cfg.MaxLoginAttempts,
			LoginCooldownDuration: cfg.LoginCooldown,
		}),
		nextID: 1,
		users:  make(map[string]*user),
		outbox: make(map[string]ResetTicket),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix(s.cfg.Prefix).Subrouter()

	api.HandleFunc("/user/token", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/user/token/", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/user/token/refresh/", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/user/register/", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/user/password-reset/{email}/", s.handlePasswordReset).Methods(http.MethodGet)
	api.HandleFunc("/user/password-change/", s.handlePasswordChange).Methods(http.MethodPost)
	api.HandleFunc("/user/me/", s.handleMe).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method \""+r.Method+"\" not allowed.")
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Prefix returns the normalized route prefix, without a trailing slash.
func (s *Server) Prefix() string {
	return s.cfg.Prefix
}

// AddUser registers an account directly, bypassing request validation.
func (s *Server) AddUser(fullName, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	if _, exists := s.users[key]; exists {
		return "", errors.New("email already registered")
	}
	u := s.insertLocked(fullName, email, hash)
	return strconv.Itoa(u.id), nil
}

// ResetTicket returns the last password reset issued for email.
func (s *Server) ResetTicket(email string) (ResetTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.outbox[normalizeEmail(email)]
	return t, ok
}

// IssueAccess mints an access token for an existing account with a custom
// lifetime. A negative ttl yields an already-expired token.
func (s *Server) IssueAccess(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	u, ok := s.users[normalizeEmail(email)]
	s.mu.Unlock()
	if !ok {
		return "", errors.New("unknown user")
	}
	return s.tokens.IssueWithTTL(jwt.KindAccess, subjectOf(u), ttl)
}

func (s *Server) insertLocked(fullName, email string, hash []byte) *user {
	username, _, _ := strings.Cut(email, "@")
	if strings.TrimSpace(fullName) == "" {
		fullName = username
	}
	u := &user{
		id:           s.nextID,
		username:     username,
		fullName:     fullName,
		email:        email,
		passwordHash: hash,
	}
	s.nextID++
	s.users[normalizeEmail(email)] = u
	return u
}

func (s *Server) issuePair(u *user) (access, refresh string, err error) {
	subject := subjectOf(u)
	access, err = s.tokens.Issue(jwt.KindAccess, subject)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.tokens.Issue(jwt.KindRefresh, subject)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func subjectOf(u *user) jwt.Subject {
	return jwt.Subject{
		UserID:   strconv.Itoa(u.id),
		Username: u.username,
		FullName: u.fullName,
		Email:    u.email,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func logf(format string, args ...any) {
	log.Printf("devapi: "+format, args...)
}
