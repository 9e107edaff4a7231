// Package portal is the service facade consumed by the transport layer. It
// resolves the acting principal from the context, derives the tenant scope,
// and enforces the authorization rules before delegating to the
// repositories. Nothing below this layer checks who is asking.
package portal

import (
	"context"
	"errors"
	"fmt"

	"clearbill.io/internal/analytics"
	"clearbill.io/internal/claims"
	"clearbill.io/internal/directory"
	"clearbill.io/internal/fault"
	"clearbill.io/internal/files"
	"clearbill.io/internal/ledger"
	"clearbill.io/internal/notes"
	"clearbill.io/internal/obs"
	"clearbill.io/internal/providers"
	"clearbill.io/internal/scope"
	"clearbill.io/internal/tracking"
)

// Tracker kinds addressable through the facade.
const (
	TrackCredentialing = "credentialing"
	TrackEnrollment    = "enrollment"
	TrackEDI           = "edi"
)

// Service wires the repositories behind one authorization boundary.
type Service struct {
	dir       *directory.Service
	claims    *claims.Repo
	ledger    *ledger.Ledger
	notes     *notes.Log
	providers *providers.Roster
	cred      *tracking.Tracker
	enr       *tracking.Tracker
	edi       *tracking.Tracker
	files     *files.Registry
	analytics *analytics.Engine
}

// New assembles the facade.
func New(
	dir *directory.Service,
	claimRepo *claims.Repo,
	led *ledger.Ledger,
	noteLog *notes.Log,
	roster *providers.Roster,
	cred, enr, edi *tracking.Tracker,
	registry *files.Registry,
	engine *analytics.Engine,
) *Service {
	return &Service{
		dir:       dir,
		claims:    claimRepo,
		ledger:    led,
		notes:     noteLog,
		providers: roster,
		cred:      cred,
		enr:       enr,
		edi:       edi,
		files:     registry,
		analytics: engine,
	}
}

func acting(ctx context.Context) (directory.Principal, scope.Scope, error) {
	p, ok := scope.PrincipalFromContext(ctx)
	if !ok {
		return directory.Principal{}, scope.Scope{}, fault.ErrUnauthenticated
	}
	return p, scope.For(p), nil
}

func requireAdmin(ctx context.Context) (directory.Principal, error) {
	p, _, err := acting(ctx)
	if err != nil {
		return directory.Principal{}, err
	}
	if !p.IsAdmin() {
		return directory.Principal{}, fmt.Errorf("%w: admin role required", fault.ErrForbidden)
	}
	return p, nil
}

// Login verifies credentials and returns the principal with a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (directory.Principal, string, error) {
	return s.dir.Authenticate(ctx, username, password)
}

// Logout revokes the token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.dir.Logout(ctx, token)
}

// Whoami resolves a token to its principal.
func (s *Service) Whoami(ctx context.Context, token string) (directory.Principal, error) {
	return s.dir.ValidateSession(ctx, token)
}

// ListTenants returns all principals. Admin only.
func (s *Service) ListTenants(ctx context.Context) ([]directory.Principal, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.dir.List(ctx)
}

// CreateTenant registers a new principal. Admin only.
func (s *Service) CreateTenant(ctx context.Context, in directory.CreateInput) (directory.Principal, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return directory.Principal{}, err
	}
	return s.dir.Create(ctx, in)
}

// UpdateTenant patches a principal. Admin only.
func (s *Service) UpdateTenant(ctx context.Context, id int64, patch directory.Patch) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.dir.Update(ctx, id, patch)
}

// Statuses returns the claim status enum in display order.
func (s *Service) Statuses() []string { return claims.Statuses() }

// ListClaims returns claims in scope, optionally filtered by status.
func (s *Service) ListClaims(ctx context.Context, status string) ([]claims.Claim, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return nil, err
	}
	return s.claims.List(ctx, sc, status)
}

// GetClaim returns one claim if the scope allows it.
func (s *Service) GetClaim(ctx context.Context, id int64) (claims.Claim, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return claims.Claim{}, err
	}
	c, err := s.claims.Get(ctx, id)
	if err != nil {
		return claims.Claim{}, err
	}
	if !sc.Allows(c.TenantID) {
		return claims.Claim{}, fmt.Errorf("%w: claim %d", fault.ErrForbidden, id)
	}
	return c, nil
}

// CreateClaim inserts a claim. Non-admin declared tenants are overridden
// with the caller's own.
func (s *Service) CreateClaim(ctx context.Context, in claims.CreateInput) (claims.Claim, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return claims.Claim{}, err
	}
	in.TenantID = sc.TenantFor(in.TenantID)
	return s.claims.Create(ctx, in)
}

// UpdateClaim patches a claim in scope. A transition out of Closed is
// allowed but logged.
func (s *Service) UpdateClaim(ctx context.Context, id int64, patch claims.Patch) error {
	p, sc, err := acting(ctx)
	if err != nil {
		return err
	}
	current, err := s.claims.Get(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sc.Allows(current.TenantID) {
		return fmt.Errorf("%w: claim %d", fault.ErrForbidden, id)
	}
	if patch.Status != nil && current.Status == claims.StatusClosed && *patch.Status != claims.StatusClosed {
		obs.Logger().Warn().
			Int64("claim_id", id).
			Str("claim_key", current.ClaimKey).
			Str("to_status", *patch.Status).
			Str("actor", p.Username).
			Msg("claim reopened from Closed")
	}
	return s.claims.Update(ctx, id, patch)
}

// DeleteClaim removes a claim. Admin only; missing ids are not an error.
func (s *Service) DeleteClaim(ctx context.Context, id int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.claims.Delete(ctx, id)
}

// ListPayments returns the ledger events for one claim in scope.
func (s *Service) ListPayments(ctx context.Context, tenantID int64, claimKey string) ([]ledger.Event, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, sc.TenantFor(tenantID), claimKey)
}

// RecordPayment posts a payment event. Non-admin declared tenants are
// overridden with the caller's own.
func (s *Service) RecordPayment(ctx context.Context, e ledger.Event) (ledger.Event, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return ledger.Event{}, err
	}
	e.TenantID = sc.TenantFor(e.TenantID)
	return s.ledger.Record(ctx, e)
}

// VoidPayment deletes a payment event in scope and re-derives the claim
// aggregate. Missing ids are not an error.
func (s *Service) VoidPayment(ctx context.Context, id int64) error {
	_, sc, err := acting(ctx)
	if err != nil {
		return err
	}
	e, err := s.ledger.Find(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sc.Allows(e.TenantID) {
		return fmt.Errorf("%w: payment %d", fault.ErrForbidden, id)
	}
	return s.ledger.Void(ctx, id)
}

// ListNotes returns notes in scope matching the filter, oldest first.
func (s *Service) ListNotes(ctx context.Context, f notes.Filter) ([]notes.Note, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return nil, err
	}
	return s.notes.List(ctx, sc, f)
}

// AppendNote adds a note. The author defaults to the acting principal.
func (s *Service) AppendNote(ctx context.Context, n notes.Note) (notes.Note, error) {
	p, sc, err := acting(ctx)
	if err != nil {
		return notes.Note{}, err
	}
	n.TenantID = sc.TenantFor(n.TenantID)
	if n.Author == "" {
		n.Author = p.Username
	}
	return s.notes.Append(ctx, n)
}

// DeleteNote removes a note in scope. Missing ids are not an error.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	_, sc, err := acting(ctx)
	if err != nil {
		return err
	}
	n, err := s.notes.Get(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sc.Allows(n.TenantID) {
		return fmt.Errorf("%w: note %d", fault.ErrForbidden, id)
	}
	return s.notes.Delete(ctx, id)
}

// ListProviders returns the roster in scope.
func (s *Service) ListProviders(ctx context.Context) ([]providers.Provider, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return nil, err
	}
	return s.providers.List(ctx, sc)
}

// CreateProvider adds a roster entry, tenant-pinned for non-admins.
func (s *Service) CreateProvider(ctx context.Context, p providers.Provider) (providers.Provider, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return providers.Provider{}, err
	}
	p.TenantID = sc.TenantFor(p.TenantID)
	return s.providers.Create(ctx, p)
}

// UpdateProvider patches a roster entry in scope.
func (s *Service) UpdateProvider(ctx context.Context, id int64, patch providers.Patch) error {
	_, sc, err := acting(ctx)
	if err != nil {
		return err
	}
	p, err := s.providers.Get(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sc.Allows(p.TenantID) {
		return fmt.Errorf("%w: provider %d", fault.ErrForbidden, id)
	}
	return s.providers.Update(ctx, id, patch)
}

// DeleteProvider removes a roster entry. Admin only.
func (s *Service) DeleteProvider(ctx context.Context, id int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.providers.Delete(ctx, id)
}

func (s *Service) tracker(kind string) (*tracking.Tracker, error) {
	switch kind {
	case TrackCredentialing:
		return s.cred, nil
	case TrackEnrollment:
		return s.enr, nil
	case TrackEDI:
		return s.edi, nil
	}
	return nil, fault.Invalid("unknown tracker %q", kind)
}

// ListTracking returns tracker records in scope, optionally by status token.
func (s *Service) ListTracking(ctx context.Context, kind, status string) ([]tracking.Record, error) {
	t, err := s.tracker(kind)
	if err != nil {
		return nil, err
	}
	_, sc, err := acting(ctx)
	if err != nil {
		return nil, err
	}
	return t.List(ctx, sc, status)
}

// CreateTracking adds a tracker record, tenant-pinned for non-admins.
func (s *Service) CreateTracking(ctx context.Context, kind string, rec tracking.Record) (tracking.Record, error) {
	t, err := s.tracker(kind)
	if err != nil {
		return tracking.Record{}, err
	}
	_, sc, err := acting(ctx)
	if err != nil {
		return tracking.Record{}, err
	}
	rec.TenantID = sc.TenantFor(rec.TenantID)
	return t.Create(ctx, rec)
}

// UpdateTracking patches a tracker record in scope.
func (s *Service) UpdateTracking(ctx context.Context, kind string, id int64, patch tracking.Patch) error {
	t, err := s.tracker(kind)
	if err != nil {
		return err
	}
	_, sc, err := acting(ctx)
	if err != nil {
		return err
	}
	rec, err := t.Get(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sc.Allows(rec.TenantID) {
		return fmt.Errorf("%w: %s record %d", fault.ErrForbidden, kind, id)
	}
	return t.Update(ctx, id, patch)
}

// DeleteTracking removes a tracker record. Admin only.
func (s *Service) DeleteTracking(ctx context.Context, kind string, id int64) error {
	t, err := s.tracker(kind)
	if err != nil {
		return err
	}
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return t.Delete(ctx, id)
}

// ListFiles returns file records in scope.
func (s *Service) ListFiles(ctx context.Context) ([]files.Record, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return nil, err
	}
	return s.files.List(ctx, sc)
}

// RegisterFile records an upload, tenant-pinned for non-admins. The uploader
// defaults to the acting principal.
func (s *Service) RegisterFile(ctx context.Context, rec files.Record) (files.Record, error) {
	p, sc, err := acting(ctx)
	if err != nil {
		return files.Record{}, err
	}
	rec.TenantID = sc.TenantFor(rec.TenantID)
	if rec.UploadedBy == "" {
		rec.UploadedBy = p.Username
	}
	return s.files.Register(ctx, rec)
}

// DeleteFile removes a file record in scope. Missing ids are not an error.
func (s *Service) DeleteFile(ctx context.Context, id int64) error {
	_, sc, err := acting(ctx)
	if err != nil {
		return err
	}
	rec, err := s.files.Get(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !sc.Allows(rec.TenantID) {
		return fmt.Errorf("%w: file %d", fault.ErrForbidden, id)
	}
	return s.files.Delete(ctx, id)
}

// Summary computes the dashboard for the caller's own scope.
func (s *Service) Summary(ctx context.Context) (analytics.Report, error) {
	_, sc, err := acting(ctx)
	if err != nil {
		return analytics.Report{}, err
	}
	return s.analytics.Dashboard(ctx, sc)
}

// SummaryForTenant computes the dashboard for one tenant. Admin, or the
// tenant itself.
func (s *Service) SummaryForTenant(ctx context.Context, tenantID int64) (analytics.Report, error) {
	p, _, err := acting(ctx)
	if err != nil {
		return analytics.Report{}, err
	}
	if !p.IsAdmin() && p.ID != tenantID {
		return analytics.Report{}, fmt.Errorf("%w: tenant %d", fault.ErrForbidden, tenantID)
	}
	return s.analytics.Dashboard(ctx, scope.Tenant(tenantID))
}
