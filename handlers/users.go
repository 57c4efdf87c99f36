package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/middleware"
	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/store"
	"github.com/kevinaaaquil/scripture-catalog/validation"
)

// UsersHandler is the admin-only account management surface.
type UsersHandler struct {
	Users    store.UserRepository
	Validate *validation.Validator
	Log      logrus.FieldLogger
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Phone    string `json:"phone" validate:"max=30"`
	Address  string `json:"address" validate:"max=300"`
	Role     string `json:"role" validate:"omitempty,oneof=editor viewer"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Address  *string `json:"address" validate:"omitempty,max=300"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin editor viewer"`
	IsActive *bool   `json:"isActive"`
}

func userIDParam(r *http.Request) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperrors.InvalidInput("invalid user id %q", raw)
	}
	return id, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Internal("failed to hash password", err)
	}
	return string(hash), nil
}

func (h *UsersHandler) userByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := h.Users.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("user with ID %s not found", id.Hex())
	}
	return user, nil
}

// lastAdmin reports whether user is the only admin left.
func (h *UsersHandler) lastAdmin(ctx context.Context, user *models.User) (bool, error) {
	if user.Role != models.RoleAdmin {
		return false, nil
	}
	n, err := h.Users.AdminsCount(ctx)
	if err != nil {
		return false, err
	}
	return n <= 1, nil
}

// Create adds an editor or viewer. Admins cannot be created through the API;
// promote an existing account instead.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := h.Validate.Validate(req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleViewer
	}

	existing, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if existing != nil {
		writeError(w, r, h.Log, apperrors.Conflict("email %s is already in use", req.Email))
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	user := &models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Password:  hash,
		Role:      req.Role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if user.ID, err = h.Users.CreateUser(r.Context(), user); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.Log.WithFields(logrus.Fields{
		"userId":    user.ID.Hex(),
		"role":      user.Role,
		"createdBy": middleware.EmailFromContext(r.Context()),
	}).Info("user created")
	writeJSON(w, http.StatusCreated, user)
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Email != nil {
		e := normalizeEmail(*req.Email)
		req.Email = &e
	}
	if req.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*req.Role))
		req.Role = &role
	}
	if err := h.Validate.Validate(req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	user, err := h.userByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Email != nil && *req.Email == "" {
		writeError(w, r, h.Log, apperrors.InvalidInput("email cannot be empty"))
		return
	}
	if req.Email != nil && *req.Email != user.Email {
		existing, err := h.Users.UserByEmail(r.Context(), *req.Email)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		if existing != nil {
			writeError(w, r, h.Log, apperrors.Conflict("email %s is already in use", *req.Email))
			return
		}
	}
	demoted := req.Role != nil && *req.Role != models.RoleAdmin
	disabled := req.IsActive != nil && !*req.IsActive
	if demoted || disabled {
		last, err := h.lastAdmin(r.Context(), user)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		if last {
			writeError(w, r, h.Log, apperrors.InvalidInput("cannot demote or disable the last admin"))
			return
		}
	}

	upd := store.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Role:     req.Role,
		IsActive: req.IsActive,
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		upd.Password = &hash
	}
	if err := h.Users.UpdateUser(r.Context(), id, upd); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	user, err = h.userByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete removes an account. Admins cannot delete themselves or the last admin.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if current, ok := middleware.UserIDFromContext(r.Context()); ok && current == id {
		writeError(w, r, h.Log, apperrors.InvalidInput("cannot delete your own account"))
		return
	}
	user, err := h.userByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	last, err := h.lastAdmin(r.Context(), user)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if last {
		writeError(w, r, h.Log, apperrors.InvalidInput("cannot delete the last admin"))
		return
	}
	if err := h.Users.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
