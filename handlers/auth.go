package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
	"github.com/kevinaaaquil/scripture-catalog/middleware"
	"github.com/kevinaaaquil/scripture-catalog/models"
	"github.com/kevinaaaquil/scripture-catalog/store"
	"github.com/kevinaaaquil/scripture-catalog/validation"
)

const tokenTTL = 7 * 24 * time.Hour

type AuthHandler struct {
	Users     store.UserRepository
	Validate  *validation.Validator
	JWTSecret string
	// Bootstrap admin credentials; accepted only while no users exist.
	DefaultEmail string
	DefaultPass  string
	Log          logrus.FieldLogger
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type MeResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

var errBadCredentials = apperrors.Unauthorized("invalid email or password")

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.Validate.Validate(req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	user, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if user == nil {
		user, err = h.bootstrapAdmin(r.Context(), req)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	} else if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		writeError(w, r, h.Log, errBadCredentials)
		return
	}
	if !user.IsActive {
		writeError(w, r, h.Log, apperrors.Forbidden("account is disabled"))
		return
	}

	token, err := h.createToken(user)
	if err != nil {
		writeError(w, r, h.Log, apperrors.Internal("could not create token", err))
		return
	}
	h.Log.WithFields(logrus.Fields{"userId": user.ID.Hex(), "role": user.Role}).Info("user logged in")
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Email: user.Email, Role: user.Role})
}

// bootstrapAdmin creates the first admin from the configured default
// credentials. Once any user exists the defaults stop working.
func (h *AuthHandler) bootstrapAdmin(ctx context.Context, req LoginRequest) (*models.User, error) {
	if h.DefaultEmail == "" || req.Email != strings.ToLower(h.DefaultEmail) || req.Password != h.DefaultPass {
		return nil, errBadCredentials
	}
	n, err := h.Users.UsersCount(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, errBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(h.DefaultPass), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("login failed", err)
	}
	user := &models.User{
		Name:      "Administrator",
		Email:     req.Email,
		Password:  string(hash),
		Role:      models.RoleAdmin,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	id, err := h.Users.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id
	h.Log.WithField("email", user.Email).Warn("seeded bootstrap admin from default credentials")
	return user, nil
}

func (h *AuthHandler) createToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &middleware.Claims{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.JWTSecret))
}

// Me echoes the identity carried by the caller's token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, h.Log, apperrors.Unauthorized("unauthorized"))
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{
		ID:    id.Hex(),
		Email: middleware.EmailFromContext(r.Context()),
		Role:  middleware.RoleFromContext(r.Context()),
	})
}
