package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joycompass/joycompass-backend/internal/database"
	"github.com/joycompass/joycompass-backend/internal/services"
	"github.com/joycompass/joycompass-backend/pkg/utils"
)

// Signup Request
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// Signin Request
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest for password reset
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes a password reset
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Auth Response
type AuthResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	User    map[string]interface{} `json:"user,omitempty"`
	Token   string                 `json:"token,omitempty"`
}

// extractBearerToken pulls the token out of an "Authorization: Bearer x" header.
func extractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireAuth validates the session and returns the authenticated user's ID.
// Returns ("", false) if not authenticated.
func requireAuth(r *http.Request) (string, bool) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return "", false
	}
	userID, ok, err := services.ValidateSession(token)
	if err != nil || !ok {
		return "", false
	}
	return userID.String(), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userMap(id, email string, name, avatarURL sql.NullString, createdAt time.Time) map[string]interface{} {
	m := map[string]interface{}{
		"id":         id,
		"email":      email,
		"created_at": createdAt,
	}
	if name.Valid && name.String != "" {
		m["name"] = name.String
	}
	if avatarURL.Valid && avatarURL.String != "" {
		m["avatar"] = avatarURL.String
	}
	return m
}

// Signup handles user registration
func Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid request body"})
		return
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "A valid email is required"})
		return
	}
	if len(req.Password) < 8 {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Password must be at least 8 characters"})
		return
	}

	// Check if user already exists
	var existingEmail string
	err := database.PostgresDB.QueryRow("SELECT email FROM users WHERE LOWER(email) = $1", email).Scan(&existingEmail)
	if err == nil {
		writeJSON(w, http.StatusConflict, AuthResponse{Success: false, Message: "An account with this email already exists"})
		return
	} else if err != sql.ErrNoRows {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Database error"})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Failed to hash password"})
		return
	}

	userID := uuid.New()
	now := time.Now()

	_, err = database.PostgresDB.Exec(`
		INSERT INTO users (id, email, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, email, req.Name, hashedPassword, now)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Failed to create user"})
		return
	}

	token, err := services.CreateSession(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Failed to create session"})
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: "Account created successfully",
		User:    userMap(userID.String(), email, sql.NullString{String: req.Name, Valid: req.Name != ""}, sql.NullString{}, now),
		Token:   token,
	})
}

// Signin handles user login
func Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid request body"})
		return
	}

	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Email and password are required"})
		return
	}

	var userID uuid.UUID
	var email, passwordHash string
	var name, avatarURL sql.NullString
	var createdAt time.Time
	var isActive bool

	err := database.PostgresDB.QueryRow(`
		SELECT id, email, name, avatar_url, password_hash, created_at, is_active
		FROM users WHERE LOWER(email) = $1
	`, normalizeEmail(req.Email)).Scan(&userID, &email, &name, &avatarURL, &passwordHash, &createdAt, &isActive)
	if err != nil {
		if err == sql.ErrNoRows {
			writeJSON(w, http.StatusUnauthorized, AuthResponse{Success: false, Message: "Invalid email or password"})
		} else {
			writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Database error"})
		}
		return
	}

	if !isActive {
		writeJSON(w, http.StatusUnauthorized, AuthResponse{Success: false, Message: "This account has been deactivated"})
		return
	}

	valid, err := utils.VerifyPassword(req.Password, passwordHash)
	if err != nil || !valid {
		writeJSON(w, http.StatusUnauthorized, AuthResponse{Success: false, Message: "Invalid email or password"})
		return
	}

	token, err := services.CreateSession(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Failed to create session"})
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		User:    userMap(userID.String(), email, name, avatarURL, createdAt),
		Token:   token,
	})
}

// Signout invalidates the current session. Always succeeds from the
// client's point of view; a missing token is treated as already signed out.
func Signout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token != "" {
		if err := services.InvalidateSession(token); err != nil {
			log.Printf("failed to invalidate session: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Signed out"})
}

// GetMe returns the authenticated user's profile
func GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, AuthResponse{Success: false, Message: "Authentication required"})
		return
	}

	var email string
	var name, avatarURL sql.NullString
	var createdAt time.Time

	err := database.PostgresDB.QueryRow(`
		SELECT email, name, avatar_url, created_at FROM users WHERE id = $1
	`, userID).Scan(&email, &name, &avatarURL, &createdAt)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Database error"})
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "OK",
		User:    userMap(userID, email, name, avatarURL, createdAt),
	})
}

// ForgotPassword starts the password reset flow. The response never reveals
// whether the email exists.
func ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid request body"})
		return
	}

	genericResponse := AuthResponse{Success: true, Message: "If an account exists for this email, a reset link has been sent"}

	var userID uuid.UUID
	err := database.PostgresDB.QueryRow("SELECT id FROM users WHERE LOWER(email) = $1", normalizeEmail(req.Email)).Scan(&userID)
	if err != nil {
		writeJSON(w, http.StatusOK, genericResponse)
		return
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Failed to generate reset token"})
		return
	}
	resetToken := base64.URLEncoding.EncodeToString(tokenBytes)

	_, err = database.PostgresDB.Exec(`
		INSERT INTO password_reset_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, userID, resetToken, time.Now().Add(1*time.Hour))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Database error"})
		return
	}

	// Delivery is out of band; log so operators can assist manually.
	log.Printf("Password reset token issued for user %s", userID)

	writeJSON(w, http.StatusOK, genericResponse)
}

// ResetPassword completes the password reset flow with a valid token
func ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid request body"})
		return
	}

	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Reset token is required"})
		return
	}
	if len(req.NewPassword) < 8 {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Password must be at least 8 characters"})
		return
	}

	var tokenID, userID uuid.UUID
	var expiresAt time.Time
	var used bool

	err := database.PostgresDB.QueryRow(`
		SELECT id, user_id, expires_at, used FROM password_reset_tokens WHERE token = $1
	`, req.Token).Scan(&tokenID, &userID, &expiresAt, &used)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid or expired reset token"})
		return
	}

	if used || time.Now().After(expiresAt) {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid or expired reset token"})
		return
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Failed to hash password"})
		return
	}

	tx, err := database.PostgresDB.Begin()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Database error"})
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE users SET password_hash = $1 WHERE id = $2", hashedPassword, userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Failed to update password"})
		return
	}
	if _, err := tx.Exec("UPDATE password_reset_tokens SET used = TRUE WHERE id = $1", tokenID); err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Database error"})
		return
	}
	if err := tx.Commit(); err != nil {
		writeJSON(w, http.StatusInternalServerError, AuthResponse{Success: false, Message: "Database error"})
		return
	}

	// Old sessions die with the old password
	services.InvalidateUserSessions(userID)

	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Password updated successfully"})
}
