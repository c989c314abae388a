package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vanachterjacob/BC-MCP/internal/auth"
	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/storage"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("max_bytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

// maxBytes bounds the encoded length of a string. bcrypt refuses passwords
// over 72 bytes whatever their rune count, which max alone does not catch.
func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("max_bytes: bad limit %q", fl.Param()))
	}
	return len(fl.Field().String()) <= limit
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type createUserRequest struct {
	Username     string         `json:"username" validate:"required,min=3,max=30"`
	Email        string         `json:"email" validate:"required,email"`
	Password     string         `json:"password" validate:"required,min=6,max_bytes=72"`
	Role         models.Role    `json:"role" validate:"omitempty,oneof=user admin contributor"`
	Organization string         `json:"organization"`
	Preferences  map[string]any `json:"preferences"`
}

type updateUserRequest struct {
	Username     *string        `json:"username" validate:"omitempty,min=3,max=30"`
	Email        *string        `json:"email" validate:"omitempty,email"`
	Password     *string        `json:"password" validate:"omitempty,min=6,max_bytes=72"`
	Role         *models.Role   `json:"role" validate:"omitempty,oneof=user admin contributor"`
	Organization *string        `json:"organization"`
	Preferences  map[string]any `json:"preferences"`
	Active       *bool          `json:"active"`
}

// validationMessages flattens validator errors into client-facing text.
func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "max_bytes":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s bytes", field, fe.Param()))
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fe.Error())
		}
	}
	return msgs
}

func (s *Server) usersAvailable(w http.ResponseWriter) bool {
	if s.opts.Users == nil || s.opts.Auth == nil {
		writeMessage(w, http.StatusServiceUnavailable, "User storage is not configured")
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Please provide username and password")
		return
	}

	token, u, err := s.opts.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.serverError(w, "login", err)
		return
	}
	s.log.Info("user logged in", "user", u.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    u,
		"token":   token,
	})
}

// handleLogout revokes the token the request was authenticated with.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r.Header.Get("Authorization"))
	s.opts.Auth.Tokens.Revoke(token)
	p, _ := auth.FromContext(r.Context())
	s.log.Info("user logged out", "user", p.Username)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	list, err := s.opts.Users.List(r.Context())
	if err != nil {
		s.serverError(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	u, err := s.opts.Users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.userError(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Please provide username, email, and password",
			"errors":  validationMessages(err),
		})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.serverError(w, "create user", err)
		return
	}
	u, err := s.opts.Users.Create(r.Context(), storage.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Organization: req.Organization,
		Preferences:  req.Preferences,
	})
	if err != nil {
		s.userError(w, "create user", err)
		return
	}
	s.log.Info("user registered", "id", u.ID, "user", u.Username, "role", u.Role)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    u,
	})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Invalid user update",
			"errors":  validationMessages(err),
		})
		return
	}

	p, _ := auth.FromContext(r.Context())
	if (req.Role != nil || req.Active != nil) && !p.IsAdmin() {
		writeMessage(w, http.StatusForbidden, "Access denied. Admin role required to change role or status")
		return
	}

	params := storage.UpdateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		Role:         req.Role,
		Organization: req.Organization,
		Preferences:  req.Preferences,
		Active:       req.Active,
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.serverError(w, "update user", err)
			return
		}
		params.PasswordHash = &hash
	}

	id := r.PathValue("id")
	u, err := s.opts.Users.Update(r.Context(), id, params)
	if err != nil {
		s.userError(w, "update user", err)
		return
	}
	// credentials and privileges changed, so outstanding tokens are stale
	if req.Role != nil || req.Active != nil || req.Password != nil {
		s.opts.Auth.Tokens.RevokeUser(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    u,
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.usersAvailable(w) {
		return
	}
	u, err := s.opts.Users.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.userError(w, "delete user", err)
		return
	}
	s.opts.Auth.Tokens.RevokeUser(u.ID)
	s.log.Info("user deleted", "id", u.ID, "user", u.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "User deleted successfully",
		"user":    u,
	})
}

func (s *Server) userError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "User not found")
	case errors.Is(err, storage.ErrDuplicate):
		writeMessage(w, http.StatusConflict, "Username or email already exists")
	default:
		s.serverError(w, op, err)
	}
}
