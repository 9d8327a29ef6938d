package admin

import (
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

// loginRequest is the POST /api/login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string            `json:"token"`
	Role  controlplane.Role `json:"role"`
}

// handleLogin verifies username/password against the stored argon2id hash
// and, on success, mints a bearer token in the session store.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.store.UserByUsername(r.Context(), req.Username)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil || !match {
		h.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token := uuid.NewString()
	h.sessions.Create(token, user.Username, string(user.Role), h.sessionTTL)
	h.respondJSON(w, http.StatusOK, loginResponse{Token: token, Role: user.Role})
}

// createUserRequest is the POST /api/users body. password_hash is never
// accepted directly: the generic /api/db/users surface can read and update
// a user's role, but user creation always goes through this handler so the
// password is hashed server-side rather than trusted from the caller.
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// handleCreateUser creates a new Control Plane account. Admin-only: this is
// the only write path onto the users table that can set a password.
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := h.readJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	role := controlplane.Role(req.Role)
	if _, known := roleRank[string(role)]; !known {
		h.respondError(w, http.StatusBadRequest, "role must be one of user, analyst, admin")
		return
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	id, err := h.store.CreateUser(r.Context(), controlplane.User{
		Username:     req.Username,
		PasswordHash: hash,
		Email:        req.Email,
		Role:         role,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		h.respondError(w, http.StatusConflict, "username or email already in use")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// roleRank orders roles from least to most privileged, so requireRole can
// accept a session whose role meets or exceeds the route's minimum.
var roleRank = map[string]int{
	string(controlplane.RoleUser):    1,
	string(controlplane.RoleAnalyst): 2,
	string(controlplane.RoleAdmin):   3,
}

// requireRole wraps next so it only runs for a request bearing a valid,
// unexpired session token whose role rank meets or exceeds minRole.
func (h *Handler) requireRole(minRole string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		_, role, ok := h.sessions.Lookup(token)
		if !ok {
			h.respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		if roleRank[role] < roleRank[minRole] {
			h.respondError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
