package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func openTest(t *testing.T, dir string) *Service {
	t.Helper()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitState(t *testing.T, ch <-chan State, want State) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case got, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed while waiting for %s", want)
			}
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestSetAndClear(t *testing.T) {
	dir := t.TempDir()
	s := openTest(t, dir)

	if s.State() != Guest {
		t.Fatalf("expected guest on empty dir")
	}
	if err := s.Set("abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if tok, ok := s.Credential(); !ok || tok != "abc" {
		t.Fatalf("unexpected credential %q %v", tok, ok)
	}

	info, err := os.Stat(filepath.Join(dir, TokenFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if s.State() != Guest {
		t.Fatalf("expected guest after clear")
	}
	if _, err := os.Stat(filepath.Join(dir, TokenFile)); !os.IsNotExist(err) {
		t.Fatalf("token file should be gone, err=%v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("second clear must succeed: %v", err)
	}
}

func TestSetRejectsEmpty(t *testing.T) {
	s := openTest(t, t.TempDir())
	if err := s.Set("  "); err == nil {
		t.Fatalf("expected error for empty credential")
	}
}

func TestOpenLoadsPersistedCredential(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, TokenFile), []byte("persisted\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s := openTest(t, dir)
	if tok, ok := s.Credential(); !ok || tok != "persisted" {
		t.Fatalf("expected persisted credential, got %q", tok)
	}
}

func TestSubscribeSeesLocalChanges(t *testing.T) {
	s := openTest(t, t.TempDir())
	ch, cancel := s.Subscribe()
	defer cancel()

	if err := s.Set("abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	waitState(t, ch, Authenticated)

	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	waitState(t, ch, Guest)
}

func TestSubscribeSeesExternalChanges(t *testing.T) {
	dir := t.TempDir()
	s := openTest(t, dir)
	ch, cancel := s.Subscribe()
	defer cancel()

	// Another process logs in.
	if err := os.WriteFile(filepath.Join(dir, TokenFile), []byte("other"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitState(t, ch, Authenticated)
	if tok, _ := s.Credential(); tok != "other" {
		t.Fatalf("expected reloaded credential, got %q", tok)
	}

	// And logs out again.
	if err := os.Remove(filepath.Join(dir, TokenFile)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitState(t, ch, Guest)
}

func TestCloseClosesSubscriptions(t *testing.T) {
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ch, cancel := s.Subscribe()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed")
	}
	cancel() // safe after close
}

func TestClaims(t *testing.T) {
	s := openTest(t, t.TempDir())
	if c := s.Claims(); c != (Claims{}) {
		t.Fatalf("expected empty claims for guest, got %+v", c)
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "u1",
		"username": "asha",
		"exp":      exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := s.Set(tok); err != nil {
		t.Fatalf("set: %v", err)
	}
	c := s.Claims()
	if c.Subject != "u1" || c.Username != "asha" || !c.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected claims: %+v", c)
	}

	if err := s.Set("opaque"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if c := s.Claims(); c != (Claims{}) {
		t.Fatalf("opaque credential should give empty claims, got %+v", c)
	}
}
