// Package httpapi is the REST gateway. It mirrors the gRPC service under
// /api/auth and /api/passwords and accepts the session token either from the
// "token" cookie or an "Authorization: Bearer" header.
package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/passm/internal/logging"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every route of h.
//
// Public:
//
//	POST /api/auth/signup
//	POST /api/auth/login
//	POST /api/auth/logout
//	GET  /api/auth/check
//
// Authenticated:
//
//	POST /api/auth/send-otp, /api/auth/verify-otp
//	POST /api/auth/send-email-change-otp, /api/auth/verify-email-change-otp
//	GET|PUT /api/auth/profile
//	PUT  /api/auth/change-password
//	GET|POST /api/passwords
//	POST /api/passwords/export
//	GET|PUT|DELETE /api/passwords/{id}
func NewRouter(h *Handler, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/check", h.Check)

			r.Group(func(r chi.Router) {
				r.Use(h.authenticate)
				r.Post("/send-otp", h.SendOTP)
				r.Post("/verify-otp", h.VerifyOTP)
				r.Post("/send-email-change-otp", h.SendEmailChangeOTP)
				r.Post("/verify-email-change-otp", h.VerifyEmailChangeOTP)
				r.Get("/profile", h.Profile)
				r.Put("/profile", h.UpdateProfile)
				r.Put("/change-password", h.ChangePassword)
			})
		})

		r.Route("/passwords", func(r chi.Router) {
			r.Use(h.authenticate)
			r.Get("/", h.ListPasswords)
			r.Post("/", h.CreatePassword)
			r.Post("/export", h.Export)
			r.Get("/{id}", h.GetPassword)
			r.Put("/{id}", h.UpdatePassword)
			r.Delete("/{id}", h.DeletePassword)
		})
	})

	return r
}
