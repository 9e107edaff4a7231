// Package httpapi is the JSON transport over the portal facade. It owns
// routing, middleware, session extraction, and the fault-to-status mapping;
// all authorization decisions live in the portal layer.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"clearbill.io/internal/fault"
	"clearbill.io/internal/obs"
	"clearbill.io/internal/portal"
)

// ReadyProbe reports store availability for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the transport middleware.
type Options struct {
	MaxBodyBytes int64
	RateLimitRPS int
	RateBurst    int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        *portal.Service
	readyProbe ReadyProbe
	version    string
	opts       Options
}

// New wires the routes.
func New(svc *portal.Service, rp ReadyProbe, version string, opts Options) *API {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 50
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 100
	}
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
		opts:       opts,
	}

	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.ready)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /api/login", a.login)
	a.mux.HandleFunc("POST /api/logout", a.logout)
	a.mux.HandleFunc("GET /api/whoami", a.whoami)

	a.mux.HandleFunc("GET /api/tenants", a.listTenants)
	a.mux.HandleFunc("POST /api/tenants", a.createTenant)
	a.mux.HandleFunc("PATCH /api/tenants/{id}", a.updateTenant)

	a.mux.HandleFunc("GET /api/statuses", a.listStatuses)
	a.mux.HandleFunc("GET /api/claims", a.listClaims)
	a.mux.HandleFunc("POST /api/claims", a.createClaim)
	a.mux.HandleFunc("GET /api/claims/{id}", a.getClaim)
	a.mux.HandleFunc("PATCH /api/claims/{id}", a.updateClaim)
	a.mux.HandleFunc("DELETE /api/claims/{id}", a.deleteClaim)

	a.mux.HandleFunc("GET /api/payments", a.listPayments)
	a.mux.HandleFunc("POST /api/payments", a.recordPayment)
	a.mux.HandleFunc("DELETE /api/payments/{id}", a.voidPayment)

	a.mux.HandleFunc("GET /api/notes", a.listNotes)
	a.mux.HandleFunc("POST /api/notes", a.appendNote)
	a.mux.HandleFunc("DELETE /api/notes/{id}", a.deleteNote)

	a.mux.HandleFunc("GET /api/providers", a.listProviders)
	a.mux.HandleFunc("POST /api/providers", a.createProvider)
	a.mux.HandleFunc("PATCH /api/providers/{id}", a.updateProvider)
	a.mux.HandleFunc("DELETE /api/providers/{id}", a.deleteProvider)

	a.mux.HandleFunc("GET /api/tracking/{kind}", a.listTracking)
	a.mux.HandleFunc("POST /api/tracking/{kind}", a.createTracking)
	a.mux.HandleFunc("PATCH /api/tracking/{kind}/{id}", a.updateTracking)
	a.mux.HandleFunc("DELETE /api/tracking/{kind}/{id}", a.deleteTracking)

	a.mux.HandleFunc("GET /api/files", a.listFiles)
	a.mux.HandleFunc("POST /api/files", a.registerFile)
	a.mux.HandleFunc("DELETE /api/files/{id}", a.deleteFile)

	a.mux.HandleFunc("GET /api/dashboard", a.dashboard)
	a.mux.HandleFunc("GET /api/dashboard/{tenant}", a.dashboardForTenant)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	h = RateLimit(h, a.opts.RateBurst, a.opts.RateLimitRPS)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = AccessLog(h)
	h = RequestID(h)
	return h
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "clearbill-api",
		"version": a.version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeFault maps the error taxonomy onto HTTP statuses.
func writeFault(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fault.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, fault.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, fault.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, fault.ErrDuplicate):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, fault.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, fault.ErrTransient):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		obs.Logger().Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
