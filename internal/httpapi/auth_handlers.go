package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/artifactflow/server/internal/auth"
	"github.com/artifactflow/server/pkg/models"
)

// AuthHandlers implements the auth/login/me/users endpoints (spec.md §6).
type AuthHandlers struct {
	Users  auth.UserStore
	JWT    *auth.JWTService
	Logger *slog.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int64      `json:"expires_in"`
	User        *userView  `json:"user"`
}

type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toUserView(u *models.User) *userView {
	return &userView{
		ID: u.ID, Username: u.Username, Role: u.Role, Active: u.Active,
		CreatedAt: u.CreatedAt.Format(timeFormat), UpdatedAt: u.UpdatedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	user, err := h.Users.GetByUsername(r.Context(), req.Username)
	if err != nil || !user.Active || !auth.ComparePassword(user.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
		return
	}

	token, expiresIn, err := h.JWT.Generate(user)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		ExpiresIn:   int64(expiresIn.Seconds()),
		User:        toUserView(user),
	})
}

func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	full, err := h.Users.GetByID(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(full))
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AuthHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	user, err := h.Users.Create(r.Context(), models.NewID("usr"), req.Username, hash, role)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(user))
}

func (h *AuthHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.Users.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	views := make([]*userView, 0, len(users))
	for i := range users {
		views = append(views, toUserView(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

type updateUserRequest struct {
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
}

func (h *AuthHandlers) UpdateUser(w http.ResponseWriter, r *http.Request, userID string) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	patch := auth.UserPatch{Role: req.Role, Active: req.Active}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, h.Logger, err)
			return
		}
		patch.PasswordHash = &hash
	}

	user, err := h.Users.Update(r.Context(), userID, patch)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(user))
}
