// Package auth caches the bearer credential at
// .sitewright/credentials.yaml and decides whether it is still usable.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"
)

const credentialsFile = "credentials.yaml"

// Credentials is the persisted auth state. Only this survives a process
// restart (alongside the history cache); the in-flight session does not.
type Credentials struct {
	Token string `yaml:"token"`
	Email string `yaml:"email"`
}

// Store owns the credential cache for one data directory.
type Store struct {
	mu    sync.Mutex
	dir   string
	creds Credentials
}

// NewStore loads any cached credentials from dir. A missing file just means
// logged out.
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir}

	data, err := os.ReadFile(filepath.Join(dir, credentialsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return s, nil
}

// Save persists new credentials, overwriting any previous ones. The file is
// written 0600: it holds a bearer token.
func (s *Store) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshalling credentials: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, credentialsFile), data, 0600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	s.creds = creds
	return nil
}

// Clear forgets the credentials in memory and on disk. Used for explicit
// logout and as the 401 side effect.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = Credentials{}
	err := os.Remove(filepath.Join(s.dir, credentialsFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

// Email returns the cached account email, or "" when logged out.
func (s *Store) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds.Email
}

// Token returns the bearer token for outbound requests, or "" when there is
// none or the cached one has expired. Expiry is read from the token's own
// claims without verifying the signature; verification is the server's job.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.creds.Token == "" {
		return ""
	}
	if expired(s.creds.Token) {
		return ""
	}
	return s.creds.Token
}

// expired reports whether the token carries an exp claim in the past. A
// token that does not parse as a JWT is passed through as-is: the server
// decides what to do with it.
func expired(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
