package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"clearbill.io/internal/fault"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// Service verifies credentials, issues opaque session tokens, and manages
// the principal roster.
type Service struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time

	// In-process cache in front of session validation. Entries are short
	// lived and purged on logout and password change.
	cacheMu sync.Mutex
	cache   map[string]cachedSession
}

type cachedSession struct {
	principal Principal
	expires   time.Time
}

const sessionCacheTTL = time.Minute

// Option configures Service behavior.
type Option func(*Service)

// WithSessionTTL overrides the default 30-day session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the directory over an open store handle.
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:    db,
		ttl:   defaultSessionTTL,
		now:   time.Now,
		cache: make(map[string]cachedSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) stamp() string { return s.now().UTC().Format(time.RFC3339) }

// Authenticate verifies the credentials of an active principal and issues a
// session token. Failures are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Principal, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Principal{}, "", fmt.Errorf("%w: invalid credentials", fault.ErrUnauthenticated)
	}

	var (
		p    Principal
		hash string
		salt string
	)
	err := s.db.QueryRowContext(ctx, `
		select id, username, company, contact_name, email, phone, role, is_active, created_at, last_login, password_hash, salt
		from principals where username = ? and is_active = 1`, username).
		Scan(&p.ID, &p.Username, &p.Company, &p.ContactName, &p.Email, &p.Phone, &p.Role, &p.IsActive, &p.CreatedAt, &p.LastLogin, &hash, &salt)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, "", fmt.Errorf("%w: invalid credentials", fault.ErrUnauthenticated)
	}
	if err != nil {
		return Principal{}, "", fault.Store(err)
	}
	if !VerifyPassword(hash, salt, password) {
		return Principal{}, "", fmt.Errorf("%w: invalid credentials", fault.ErrUnauthenticated)
	}

	token, err := NewSessionToken()
	if err != nil {
		return Principal{}, "", err
	}
	now := s.stamp()
	expires := s.now().UTC().Add(s.ttl).Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, `
		insert into sessions(token, principal_id, created_at, expires_at) values(?,?,?,?)`,
		token, p.ID, now, expires); err != nil {
		return Principal{}, "", fault.Store(err)
	}
	if _, err := s.db.ExecContext(ctx,
		`update principals set last_login = ? where id = ?`, now, p.ID); err != nil {
		return Principal{}, "", fault.Store(err)
	}
	p.LastLogin = now
	return p, token, nil
}

// ValidateSession resolves a token to its active principal. Expired or
// unknown tokens surface as Unauthenticated.
func (s *Service) ValidateSession(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, fault.ErrUnauthenticated
	}
	if p, ok := s.cached(token); ok {
		return p, nil
	}

	var (
		p       Principal
		expires string
	)
	err := s.db.QueryRowContext(ctx, `
		select p.id, p.username, p.company, p.contact_name, p.email, p.phone, p.role, p.is_active, p.created_at, p.last_login, s.expires_at
		from sessions s join principals p on p.id = s.principal_id
		where s.token = ? and p.is_active = 1`, token).
		Scan(&p.ID, &p.Username, &p.Company, &p.ContactName, &p.Email, &p.Phone, &p.Role, &p.IsActive, &p.CreatedAt, &p.LastLogin, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, fault.ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, fault.Store(err)
	}
	if exp, perr := time.Parse(time.RFC3339, expires); perr != nil || !s.now().UTC().Before(exp) {
		// Expired tokens are treated as absent; reap the row.
		_, _ = s.db.ExecContext(ctx, `delete from sessions where token = ?`, token)
		return Principal{}, fault.ErrUnauthenticated
	}

	s.cacheMu.Lock()
	s.cache[token] = cachedSession{principal: p, expires: s.now().Add(sessionCacheTTL)}
	s.cacheMu.Unlock()
	return p, nil
}

// Logout deletes the session. Deleting an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	s.cacheMu.Lock()
	delete(s.cache, token)
	s.cacheMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `delete from sessions where token = ?`, token); err != nil {
		return fault.Store(err)
	}
	return nil
}

func (s *Service) cached(token string) (Principal, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	entry, ok := s.cache[token]
	if !ok || s.now().After(entry.expires) {
		delete(s.cache, token)
		return Principal{}, false
	}
	return entry.principal, true
}

// List returns all principals ordered by id.
func (s *Service) List(ctx context.Context) ([]Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, username, company, contact_name, email, phone, role, is_active, created_at, last_login
		from principals order by id asc`)
	if err != nil {
		return nil, fault.Store(err)
	}
	defer rows.Close()

	var res []Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.Username, &p.Company, &p.ContactName, &p.Email, &p.Phone, &p.Role, &p.IsActive, &p.CreatedAt, &p.LastLogin); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Create registers a new principal. Usernames are unique and case-sensitive.
func (s *Service) Create(ctx context.Context, in CreateInput) (Principal, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return Principal{}, fault.Invalid("username is required")
	}
	if in.Password == "" {
		return Principal{}, fault.Invalid("password is required")
	}
	role := in.Role
	if role == "" {
		role = RoleClient
	}
	if role != RoleAdmin && role != RoleClient {
		return Principal{}, fault.Invalid("unknown role %q", role)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `select 1 from principals where username = ?`, in.Username).Scan(&exists)
	if err == nil {
		return Principal{}, fmt.Errorf("%w: username %s", fault.ErrDuplicate, in.Username)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Principal{}, fault.Store(err)
	}

	salt, err := NewSalt()
	if err != nil {
		return Principal{}, err
	}
	now := s.stamp()
	res, err := s.db.ExecContext(ctx, `
		insert into principals(username, password_hash, salt, company, contact_name, email, phone, role, is_active, created_at)
		values(?,?,?,?,?,?,?,?,1,?)`,
		in.Username, HashPassword(in.Password, salt), salt, in.Company, in.ContactName, in.Email, in.Phone, role, now)
	if err != nil {
		return Principal{}, fault.Store(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		ID: id, Username: in.Username, Company: in.Company, ContactName: in.ContactName,
		Email: in.Email, Phone: in.Phone, Role: role, IsActive: true, CreatedAt: now,
	}, nil
}

// Update applies a partial patch. A missing principal is a silent no-op.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) error {
	sets := make([]string, 0, 8)
	args := make([]any, 0, 8)
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if patch.Company != nil {
		set("company", *patch.Company)
	}
	if patch.ContactName != nil {
		set("contact_name", *patch.ContactName)
	}
	if patch.Email != nil {
		set("email", *patch.Email)
	}
	if patch.Phone != nil {
		set("phone", *patch.Phone)
	}
	if patch.Role != nil {
		if *patch.Role != RoleAdmin && *patch.Role != RoleClient {
			return fault.Invalid("unknown role %q", *patch.Role)
		}
		set("role", *patch.Role)
	}
	if patch.IsActive != nil {
		set("is_active", boolToInt(*patch.IsActive))
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return fault.Invalid("password must not be empty")
		}
		salt, err := NewSalt()
		if err != nil {
			return err
		}
		set("salt", salt)
		set("password_hash", HashPassword(*patch.Password, salt))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := s.db.ExecContext(ctx,
		`update principals set `+strings.Join(sets, ", ")+` where id = ?`, args...); err != nil {
		return fault.Store(err)
	}
	if patch.Password != nil || (patch.IsActive != nil && !*patch.IsActive) {
		if err := s.revokeSessions(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) revokeSessions(ctx context.Context, principalID int64) error {
	s.cacheMu.Lock()
	for token, entry := range s.cache {
		if entry.principal.ID == principalID {
			delete(s.cache, token)
		}
	}
	s.cacheMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `delete from sessions where principal_id = ?`, principalID); err != nil {
		return fault.Store(err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
