// Package simulator implements a mock PingFederate admin API for local
// development and testing. It replicates the auth behavior of the real
// product: HTTP Basic credentials plus a static X-XSRF-Header token.
package simulator

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/crypto/bcrypt"

	"pfagent/internal/domain"
	"pfagent/internal/middleware"
)

// xsrfHeaderValue is the CSRF token PingFederate requires.
const xsrfHeaderValue = "PingFederate"

// defaultCredentials mirror the PingFederate factory defaults plus the
// usual test accounts.
var defaultCredentials = map[string]string{
	"Administrator": "2FederateM0re",
	"admin":         "admin123",
	"testuser":      "testpass",
}

// Server is a mock multi-instance PingFederate admin API.
type Server struct {
	mu         sync.RWMutex
	licenses   map[string]domain.LicenseView
	agreements map[string]domain.LicenseAgreement
	creds      map[string][]byte // username -> bcrypt hash
	logger     *slog.Logger
}

// Option customizes a simulator server.
type Option func(*Server)

// WithLicenses replaces the seeded license data.
func WithLicenses(licenses map[string]domain.LicenseView) Option {
	return func(s *Server) {
		s.licenses = licenses
	}
}

// WithCredentials replaces the default credential set.
func WithCredentials(creds map[string]string) Option {
	return func(s *Server) {
		s.creds = hashCredentials(creds)
	}
}

// New creates a simulator seeded for the given instance ids.
func New(instanceIDs []string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		licenses: SeedLicenses(instanceIDs),
		creds:    hashCredentials(defaultCredentials),
		logger:   logger.With(slog.String("component", "simulator")),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.agreements = make(map[string]domain.LicenseAgreement, len(s.licenses))
	for id := range s.licenses {
		s.agreements[id] = domain.LicenseAgreement{
			Link:     "https://example/license-agreement",
			Accepted: true,
		}
	}
	return s
}

func hashCredentials(creds map[string]string) map[string][]byte {
	hashed := make(map[string][]byte, len(creds))
	for user, pass := range creds {
		// MinCost keeps simulator startup fast; this guards nothing real.
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
		if err != nil {
			panic(fmt.Sprintf("bcrypt failure: %v", err))
		}
		hashed[user] = hash
	}
	return hashed
}

// Routes builds the chi router with auth, CSRF and rate limiting applied.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(s.logger))
	r.Use(middleware.Recoverer(s.logger))
	r.Use(middleware.NewRateLimiter(100, 50, s.logger).Handler)

	r.Get("/cluster/status", s.handleClusterStatus)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Route("/{instance}", func(r chi.Router) {
			r.Get("/license", s.handleGetLicense)
			r.Put("/license", s.handlePutLicense)
			r.Get("/license/agreement", s.handleGetAgreement)
			r.Put("/license/agreement", s.handlePutAgreement)
		})
	})

	return r
}

// authenticate verifies Basic credentials and the X-XSRF-Header token, like
// the real PingFederate admin API.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !s.checkCredentials(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="PingFederate"`)
			renderError(w, r, http.StatusUnauthorized, "Invalid authentication credentials")
			return
		}

		if r.Header.Get("X-XSRF-Header") != xsrfHeaderValue {
			renderError(w, r, http.StatusForbidden,
				"CSRF token validation failed. X-XSRF-Header must be 'PingFederate'")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkCredentials(user, pass string) bool {
	hash, ok := s.creds[user]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
}

func (s *Server) handleGetLicense(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")

	s.mu.RLock()
	view, ok := s.licenses[instance]
	s.mu.RUnlock()

	if !ok {
		renderError(w, r, http.StatusNotFound, "Instance "+instance+" not found")
		return
	}
	render.JSON(w, r, view)
}

// handlePutLicense decodes the base64 license payload, extracts its fields
// and replaces the instance's license. Content without a parseable expiry
// date is rejected; silently substituting a default would mask bad input.
func (s *Server) handlePutLicense(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.licenses[instance]
	if !ok {
		renderError(w, r, http.StatusNotFound, "Instance "+instance+" not found")
		return
	}

	var req domain.ApplyLicenseRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	content, err := base64.StdEncoding.DecodeString(req.Value)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid license file: value is not valid base64")
		return
	}

	expiry, found := domain.ExtractExpiry(content)
	if !found {
		renderError(w, r, http.StatusBadRequest, "Invalid license file: no parseable expiry date")
		return
	}
	if _, err := domain.ParseExpiry(expiry); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid license file: bad expiry date "+expiry)
		return
	}

	updated := current
	updated.ExpiryDate = expiry
	if org, found := domain.ExtractOrganization(content); found {
		updated.IssuedTo = org
	}
	if id, found := domain.ExtractLicenseID(content); found {
		updated.LicenseKeyID = "LIC-" + id
	}

	s.licenses[instance] = updated
	s.logger.InfoContext(r.Context(), "license replaced",
		"instance", instance,
		"new_expiry", expiry,
	)
	render.JSON(w, r, updated)
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")

	s.mu.RLock()
	agreement, ok := s.agreements[instance]
	s.mu.RUnlock()

	if !ok {
		renderError(w, r, http.StatusNotFound, "Instance "+instance+" not found")
		return
	}
	render.JSON(w, r, agreement)
}

func (s *Server) handlePutAgreement(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agreements[instance]; !ok {
		renderError(w, r, http.StatusNotFound, "Instance "+instance+" not found")
		return
	}

	var agreement domain.LicenseAgreement
	if err := render.DecodeJSON(r.Body, &agreement); err != nil {
		renderError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s.agreements[instance] = agreement
	render.JSON(w, r, agreement)
}

func (s *Server) handleClusterStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	count := len(s.licenses)
	s.mu.RUnlock()

	render.JSON(w, r, map[string]interface{}{
		"mixed_mode":     false,
		"instance_count": count,
		"replication":    "IDLE",
	})
}

func renderError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]interface{}{
		"status": status,
		"detail": detail,
	})
}
