package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gorilla/mux"

	"github.com/invoicegen/platform/internal/auth"
	"github.com/invoicegen/platform/internal/domain/users"
)

type userResponse struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	BusinessName string `json:"businessName"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Token        string `json:"token,omitempty"`
}

func newUserResponse(u users.User, token string) userResponse {
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		BusinessName: u.BusinessName,
		Address:      u.Address,
		Phone:        u.Phone,
		Token:        token,
	}
}

func registerAuthRoutes(api *mux.Router, logger *slog.Logger, deps Dependencies, protect func(http.Handler) http.Handler) {
	service := deps.Domain.Users

	api.Handle("/auth/register", limit(deps.AuthLimiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var input users.RegisterInput
		if !decodeJSON(w, r, &input) {
			return
		}

		user, err := service.Register(r.Context(), input)
		if err != nil {
			var verrs validation.Errors
			switch {
			case errors.Is(err, users.ErrEmailExists):
				respondError(w, http.StatusBadRequest, "User already exists")
			case errors.As(err, &verrs):
				respondValidation(w, verrs)
			default:
				logger.Error("register user failed", "err", err)
				respondError(w, http.StatusInternalServerError, "Server error")
			}
			return
		}

		token, err := deps.Issuer.Issue(user.ID)
		if err != nil {
			logger.Error("issue token failed", "user_id", user.ID, "err", err)
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		respondJSON(w, http.StatusCreated, newUserResponse(user, token.AccessToken))
	}))).Methods(http.MethodPost)

	api.Handle("/auth/login", limit(deps.AuthLimiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &payload) {
			return
		}

		user, err := service.Authenticate(r.Context(), payload.Email, payload.Password)
		if err != nil {
			var verrs validation.Errors
			switch {
			case errors.Is(err, users.ErrNotFound), errors.Is(err, users.ErrInvalidPassword):
				respondError(w, http.StatusUnauthorized, "Invalid email or password")
			case errors.As(err, &verrs):
				respondValidation(w, verrs)
			default:
				logger.Error("login failed", "err", err)
				respondError(w, http.StatusInternalServerError, "Server error")
			}
			return
		}

		token, err := deps.Issuer.Issue(user.ID)
		if err != nil {
			logger.Error("issue token failed", "user_id", user.ID, "err", err)
			respondError(w, http.StatusInternalServerError, "Server error")
			return
		}
		respondJSON(w, http.StatusOK, newUserResponse(user, token.AccessToken))
	}))).Methods(http.MethodPost)

	api.Handle("/auth/me", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := service.Get(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			respondServiceError(w, logger, err, "Failed to load profile")
			return
		}
		respondJSON(w, http.StatusOK, newUserResponse(user, ""))
	}))).Methods(http.MethodGet)

	api.Handle("/auth/me", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var input users.ProfileInput
		if !decodeJSON(w, r, &input) {
			return
		}
		user, err := service.UpdateProfile(r.Context(), auth.UserID(r.Context()), input)
		if err != nil {
			respondServiceError(w, logger, err, "Failed to update profile")
			return
		}
		respondJSON(w, http.StatusOK, newUserResponse(user, ""))
	}))).Methods(http.MethodPut)
}
