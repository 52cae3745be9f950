package cookiecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/pkg/testutil"
)

func writeProfilesConfig(t *testing.T, dir string, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "cookie_sessions.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func writeCookieFile(t *testing.T, dir, name string, mode os.FileMode, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), mode); err != nil {
		t.Fatalf("writing cookie file: %v", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("chmod cookie file: %v", err)
	}
	return path
}

func TestGetReturnsCookiesForValidProfile(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "auth.json", 0o600, `{"session":"abc123","csrf":"tok"}`)
	cfgPath := writeProfilesConfig(t, dataDir, `
version: 1
sessions:
  staging:
    description: staging session
    cookie_file: auth.json
    cache_ttl: 60
`)

	c := New(cfgPath, dataDir)
	res, err := c.Get(context.Background(), "staging")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.Cookies["session"] != "abc123" {
		t.Fatalf("cookies = %v, want session=abc123", res.Cookies)
	}
	if res.FromCache {
		t.Fatalf("first read should not be from cache")
	}
}

func TestGetServesFromCacheWithinTTL(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "auth.json", 0o600, `{"session":"abc123"}`)
	cfgPath := writeProfilesConfig(t, dataDir, `
sessions:
  staging:
    cookie_file: auth.json
    cache_ttl: 3600
`)

	c := New(cfgPath, dataDir)
	if _, err := c.Get(context.Background(), "staging"); err != nil {
		t.Fatalf("first Get() error: %v", err)
	}

	// Mutate the file on disk; cached read must not see the change.
	writeCookieFile(t, dataDir, "auth.json", 0o600, `{"session":"changed"}`)

	res, err := c.Get(context.Background(), "staging")
	if err != nil {
		t.Fatalf("second Get() error: %v", err)
	}
	if !res.FromCache {
		t.Fatalf("second read within TTL should be served from cache")
	}
	if res.Cookies["session"] != "abc123" {
		t.Fatalf("cached cookies = %v, want stale session=abc123", res.Cookies)
	}
}

func TestGetRejectsInsecurePermissions(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "auth.json", 0o644, `{"session":"abc123"}`)
	cfgPath := writeProfilesConfig(t, dataDir, `
sessions:
  staging:
    cookie_file: auth.json
    cache_ttl: 60
`)

	c := New(cfgPath, dataDir)
	_, err := c.Get(context.Background(), "staging")
	if apperr.As(err).Kind != apperr.InsecurePermissions {
		t.Fatalf("err kind = %v, want insecure_permissions", apperr.As(err).Kind)
	}
}

func TestGetRejectsPathEscape(t *testing.T) {
	dataDir := t.TempDir()
	outside := t.TempDir()
	writeCookieFile(t, outside, "secret.json", 0o600, `{"session":"abc123"}`)
	cfgPath := writeProfilesConfig(t, dataDir, `
sessions:
  staging:
    cookie_file: ../`+filepath.Base(outside)+`/secret.json
    cache_ttl: 60
`)

	c := New(cfgPath, dataDir)
	_, err := c.Get(context.Background(), "staging")
	if apperr.As(err).Kind != apperr.PathEscape {
		t.Fatalf("err kind = %v, want path_escape", apperr.As(err).Kind)
	}
}

func TestGetRejectsMalformedJSON(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "auth.json", 0o600, `not json`)
	cfgPath := writeProfilesConfig(t, dataDir, `
sessions:
  staging:
    cookie_file: auth.json
    cache_ttl: 60
`)

	c := New(cfgPath, dataDir)
	_, err := c.Get(context.Background(), "staging")
	if apperr.As(err).Kind != apperr.ParseError {
		t.Fatalf("err kind = %v, want parse_error", apperr.As(err).Kind)
	}
}

func TestGetRejectsUnknownProfile(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeProfilesConfig(t, dataDir, `sessions: {}`)

	c := New(cfgPath, dataDir)
	_, err := c.Get(context.Background(), "ghost")
	if apperr.As(err).Kind != apperr.NotFound {
		t.Fatalf("err kind = %v, want not_found", apperr.As(err).Kind)
	}
}

func TestGetRejectsInvalidProfileName(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeProfilesConfig(t, dataDir, `sessions: {}`)

	c := New(cfgPath, dataDir)
	_, err := c.Get(context.Background(), "not a valid name!")
	if apperr.As(err).Kind != apperr.ValidationFailed {
		t.Fatalf("err kind = %v, want validation_failed", apperr.As(err).Kind)
	}
}

func TestConcurrentGetsCoalesceToOneRead(t *testing.T) {
	dataDir := t.TempDir()
	writeCookieFile(t, dataDir, "auth.json", 0o600, `{"session":"abc123"}`)
	cfgPath := writeProfilesConfig(t, dataDir, `
sessions:
  staging:
    cookie_file: auth.json
    cache_ttl: 60
`)

	c := New(cfgPath, dataDir)

	tracker := testutil.TrackGoroutines()
	errs := make([]error, 20)
	testutil.RunConcurrently(len(errs), func(i int) {
		_, errs[i] = c.Get(context.Background(), "staging")
	})
	tracker.CheckLeaks(t, 2)

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: Get() error: %v", i, err)
		}
	}
}

func TestListReturnsDeclaredProfiles(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeProfilesConfig(t, dataDir, `
sessions:
  staging:
    description: staging session
    cookie_file: auth.json
  prod:
    description: prod session
    cookie_file: prod.json
`)

	c := New(cfgPath, dataDir)
	profiles, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("len(profiles) = %d, want 2", len(profiles))
	}
}

func TestListOnMissingConfigReturnsEmpty(t *testing.T) {
	dataDir := t.TempDir()
	c := New(filepath.Join(dataDir, "does-not-exist.yaml"), dataDir)
	profiles, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(profiles) != 0 {
		t.Fatalf("len(profiles) = %d, want 0", len(profiles))
	}
}
