package devserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const (
	fieldRequired      = "This field is required."
	minServerPassword  = 8
	maxRequestBodySize = 64 << 10
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	Refresh string `json:"refresh"`
}

type registerBody struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

type passwordChangeBody struct {
	OTP          string `json:"otp"`
	UUIDB64      string `json:"uuidb64"`
	RefreshToken string `json:"refresh_token"`
	Password     string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decodeBody(w, r, &body) {
		return
	}
	fields := fieldErrors{}
	fields.required("email", body.Email)
	fields.required("password", body.Password)
	if fields.any() {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}

	ctx := r.Context()
	ip := clientIP(r)
	if err := s.limiter.CheckLogin(ctx, body.Email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			writeDetail(w, http.StatusTooManyRequests, "Request was throttled.")
			return
		}
		logf("login limiter: %v", err)
		writeDetail(w, http.StatusServiceUnavailable, "Service temporarily unavailable.")
		return
	}

	s.mu.Lock()
	u, ok := s.users[normalizeEmail(body.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(body.Password)) != nil {
		if err := s.limiter.IncrementLogin(ctx, body.Email, ip); err != nil {
			logf("login limiter: %v", err)
		}
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	if err := s.limiter.ResetLogin(ctx, body.Email, ip); err != nil {
		logf("login limiter: %v", err)
	}

	access, refresh, err := s.issuePair(u)
	if err != nil {
		logf("issue tokens: %v", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"refresh": refresh, "access": access})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !decodeBody(w, r, &body) {
		return
	}
	fields := fieldErrors{}
	fields.required("refresh", body.Refresh)
	if fields.any() {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}

	claims, err := s.tokens.Verify(body.Refresh, jwt.KindRefresh)
	if err != nil {
		writeTokenInvalid(w, "Token is invalid or expired")
		return
	}

	s.mu.Lock()
	u, ok := s.userByIDLocked(claims.UserID)
	s.mu.Unlock()
	if !ok {
		writeTokenInvalid(w, "User not found")
		return
	}

	if s.cfg.RotateRefresh {
		used, err := s.blacklist(r, claims.ID, claims.ExpiresAt.Time)
		if err != nil {
			logf("refresh blacklist: %v", err)
			writeDetail(w, http.StatusServiceUnavailable, "Service temporarily unavailable.")
			return
		}
		if used {
			writeTokenInvalid(w, "Token is blacklisted")
			return
		}
		access, refresh, err := s.issuePair(u)
		if err != nil {
			logf("issue tokens: %v", err)
			writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
		return
	}

	access, err := s.tokens.Issue(jwt.KindAccess, subjectOf(u))
	if err != nil {
		logf("issue tokens: %v", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// blacklist marks a refresh token's jti as spent. used reports whether it had
// already been spent.
func (s *Server) blacklist(r *http.Request, jti string, exp time.Time) (used bool, err error) {
	ttl := exp.Sub(s.cfg.Now())
	if ttl <= 0 {
		ttl = time.Second
	}
	key := s.cfg.RedisPrefix + ":bl:" + jti
	fresh, err := s.cfg.Redis.SetNX(r.Context(), key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decodeBody(w, r, &body) {
		return
	}
	fields := fieldErrors{}
	fields.required("full_name", body.FullName)
	fields.required("email", body.Email)
	fields.required("password", body.Password)
	fields.required("password2", body.Password2)
	if body.Email != "" && !strings.Contains(body.Email, "@") {
		fields.add("email", "Enter a valid email address.")
	}
	if body.Password != "" {
		for _, msg := range passwordProblems(body.Password) {
			fields.add("password", msg)
		}
	}
	if fields.any() {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}
	if body.Password != body.Password2 {
		writeJSON(w, http.StatusBadRequest, fieldErrors{"password": {"Password fields didn't match."}})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.cfg.BcryptCost)
	if err != nil {
		logf("hash password: %v", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[normalizeEmail(body.Email)]; exists {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, fieldErrors{"email": {"user with this email already exists."}})
		return
	}
	for _, other := range s.users {
		if other.fullName == body.FullName {
			s.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, fieldErrors{"full_name": {"user with this full name already exists."}})
			return
		}
	}
	u := s.insertLocked(body.FullName, body.Email, hash)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"full_name": u.fullName, "email": u.email})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	email := mux.Vars(r)["email"]

	s.mu.Lock()
	u, ok := s.users[normalizeEmail(email)]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "User does not exist")
		return
	}

	otp, err := newOTP(6)
	if err != nil {
		logf("otp: %v", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}
	refresh, err := s.tokens.Issue(jwt.KindRefresh, subjectOf(u))
	if err != nil {
		logf("issue tokens: %v", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	ticket := ResetTicket{
		OTP:          otp,
		UUIDB64:      base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(u.id))),
		RefreshToken: refresh,
	}
	s.mu.Lock()
	u.otp = otp
	s.outbox[normalizeEmail(u.email)] = ticket
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset email sent"})
}

func (s *Server) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	var body passwordChangeBody
	if !decodeBody(w, r, &body) {
		return
	}
	fields := fieldErrors{}
	fields.required("otp", body.OTP)
	fields.required("uuidb64", body.UUIDB64)
	fields.required("refresh_token", body.RefreshToken)
	fields.required("password", body.Password)
	if fields.any() {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}

	rawID, err := base64.RawURLEncoding.DecodeString(body.UUIDB64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "User does not exist")
		return
	}
	if _, err := s.tokens.Verify(body.RefreshToken, jwt.KindRefresh); err != nil {
		writeTokenInvalid(w, "Token is invalid or expired")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), s.cfg.BcryptCost)
	if err != nil {
		logf("hash password: %v", err)
		writeDetail(w, http.StatusInternalServerError, "A server error occurred.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.userByIDLocked(string(rawID))
	if !ok || u.otp == "" || u.otp != body.OTP {
		writeDetail(w, http.StatusNotFound, "User does not exist")
		return
	}
	u.passwordHash = hash
	u.otp = ""
	delete(s.outbox, normalizeEmail(u.email))

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Password changed successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}
	claims, err := s.tokens.Verify(token, jwt.KindAccess)
	if err != nil {
		writeTokenInvalid(w, "Given token not valid for any token type")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":   claims.UserID,
		"username":  claims.Username,
		"full_name": claims.FullName,
		"email":     claims.Email,
	})
}

func (s *Server) userByIDLocked(id string) (*user, bool) {
	for _, u := range s.users {
		if strconv.Itoa(u.id) == id {
			return u, true
		}
	}
	return nil, false
}

// passwordProblems mirrors the server-side password validators.
func passwordProblems(password string) []string {
	var out []string
	if len(password) < minServerPassword {
		out = append(out, "This password is too short. It must contain at least 8 characters.")
	}
	numeric := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		out = append(out, "This password is entirely numeric.")
	}
	return out
}

type fieldErrors map[string][]string

func (f fieldErrors) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, fieldRequired)
	}
}

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f fieldErrors) any() bool {
	return len(f) > 0
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		writeDetail(w, http.StatusBadRequest, "JSON parse error - "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logf("write response: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeTokenInvalid(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"detail": detail,
		"code":   "token_not_valid",
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
