// Package cookiecache loads named cookie profiles from disk and caches
// their contents for a profile-specific TTL, enforcing strict file
// permissions and path containment on every load.
package cookiecache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/pkg/defaults"
)

// profileNamePattern matches the allowed character set for a profile name.
var profileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Profile is a single named cookie-profile declaration loaded from the
// cookie sessions configuration file.
type Profile struct {
	Name        string            `yaml:"-"`
	Description string            `yaml:"description"`
	CookieFile  string            `yaml:"cookie_file"`
	CacheTTL    int               `yaml:"cache_ttl"`
	Metadata    map[string]string `yaml:"metadata"`
}

type profilesFile struct {
	Version  int                 `yaml:"version"`
	Sessions map[string]*Profile `yaml:"sessions"`
}

// Result is the data returned for a resolved cookie profile.
type Result struct {
	Cookies      map[string]string `json:"cookies"`
	SessionName  string            `json:"session_name"`
	Description  string            `json:"description"`
	LastUpdated  time.Time         `json:"last_updated"`
	FromCache    bool              `json:"from_cache"`
	FileModified time.Time         `json:"file_modified,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type entry struct {
	cookies   map[string]string
	cachedAt  time.Time
	fileStamp time.Time
}

// Cache resolves named cookie profiles against a configuration file and a
// data directory, caching each profile's parsed contents for its
// configured TTL. Concurrent fetches for the same profile coalesce to a
// single disk read via singleflight.
type Cache struct {
	configPath string
	dataDir    string

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
}

// New returns a Cache that reads profile declarations from configPath and
// resolves relative cookie_file paths against dataDir.
func New(configPath, dataDir string) *Cache {
	return &Cache{
		configPath: configPath,
		dataDir:    dataDir,
		entries:    make(map[string]*entry),
	}
}

// List returns the declared profile set from the configuration file,
// re-read on every call; there is no hot-reload guarantee between calls.
func (c *Cache) List(ctx context.Context) ([]*Profile, error) {
	pf, err := c.loadProfiles()
	if err != nil {
		return nil, err
	}
	out := make([]*Profile, 0, len(pf.Sessions))
	for _, p := range pf.Sessions {
		out = append(out, p)
	}
	return out, nil
}

// Get resolves a named cookie profile, returning its cookies from cache if
// still fresh or reading and caching it from disk otherwise. Concurrent
// calls for the same name share one disk read.
func (c *Cache) Get(ctx context.Context, name string) (*Result, error) {
	if !profileNamePattern.MatchString(name) {
		return nil, apperr.New(apperr.ValidationFailed, "cookie profile name %q contains disallowed characters", name)
	}

	pf, err := c.loadProfiles()
	if err != nil {
		return nil, err
	}
	profile, ok := pf.Sessions[name]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "cookie profile not found: %s", name)
	}

	if cached, fresh := c.cached(name, profile.CacheTTL); fresh {
		return c.buildResult(profile, cached.cookies, true, cached.fileStamp), nil
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		return c.load(profile)
	})
	if err != nil {
		return nil, err
	}
	loaded := v.(*entry)
	return c.buildResult(profile, loaded.cookies, false, loaded.fileStamp), nil
}

func (c *Cache) cached(name string, ttl int) (*entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok {
		return nil, false
	}
	if time.Since(e.cachedAt) >= time.Duration(ttl)*time.Second {
		return nil, false
	}
	return e, true
}

// load resolves, validates, and parses a profile's cookie file, then caches
// the result keyed by profile name.
func (c *Cache) load(profile *Profile) (*entry, error) {
	resolved, err := c.resolveCookiePath(profile.CookieFile)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, apperr.New(apperr.NotFound, "cookie file not found: %s", resolved)
	}

	mode := info.Mode().Perm()
	if mode != 0o600 && mode != 0o400 {
		return nil, apperr.New(apperr.InsecurePermissions,
			"cookie file %s has insecure permissions %#o; must be 0600 or 0400", resolved, mode)
	}
	if stat, ok := info.Sys().(*syscall.Stat_t); ok && stat.Uid != uint32(os.Getuid()) {
		return nil, apperr.New(apperr.InsecurePermissions,
			"cookie file %s is not owned by the current user (uid %d)", resolved, os.Getuid())
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, apperr.New(apperr.NotFound, "reading cookie file %s: %v", resolved, err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperr.New(apperr.ParseError, "cookie file %s is not a JSON object: %v", resolved, err)
	}

	cookies := make(map[string]string, len(parsed))
	for k, v := range parsed {
		cookies[k] = fmt.Sprintf("%v", v)
	}

	e := &entry{cookies: cookies, cachedAt: time.Now(), fileStamp: info.ModTime()}

	c.mu.Lock()
	c.entries[profile.Name] = e
	c.mu.Unlock()

	return e, nil
}

// resolveCookiePath expands the profile's cookie_file against the data
// directory and rejects any path that canonicalises outside it.
func (c *Cache) resolveCookiePath(cookieFile string) (string, error) {
	var joined string
	if filepath.IsAbs(cookieFile) {
		joined = cookieFile
	} else {
		joined = filepath.Join(c.dataDir, cookieFile)
	}

	resolved, err := filepath.EvalSymlinks(joined)
	if err != nil {
		// File may not exist yet (handled by the caller's Stat); fall
		// back to the lexically-cleaned path for the containment check.
		resolved = filepath.Clean(joined)
	}

	dataDirResolved, err := filepath.EvalSymlinks(c.dataDir)
	if err != nil {
		dataDirResolved = filepath.Clean(c.dataDir)
	}

	rel, err := filepath.Rel(dataDirResolved, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.New(apperr.PathEscape, "cookie file %q escapes data directory %q", cookieFile, c.dataDir)
	}
	return resolved, nil
}

func (c *Cache) buildResult(profile *Profile, cookies map[string]string, fromCache bool, fileStamp time.Time) *Result {
	return &Result{
		Cookies:      cookies,
		SessionName:  profile.Name,
		Description:  profile.Description,
		LastUpdated:  time.Now().UTC(),
		FromCache:    fromCache,
		FileModified: fileStamp,
		Metadata:     profile.Metadata,
	}
}

func (c *Cache) loadProfiles() (*profilesFile, error) {
	raw, err := os.ReadFile(c.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &profilesFile{Sessions: map[string]*Profile{}}, nil
		}
		return nil, apperr.New(apperr.Internal, "reading cookie sessions config %s: %v", c.configPath, err)
	}

	var pf profilesFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, apperr.New(apperr.ParseError, "invalid YAML in cookie sessions config %s: %v", c.configPath, err)
	}
	if pf.Sessions == nil {
		pf.Sessions = map[string]*Profile{}
	}

	valid := make(map[string]*Profile, len(pf.Sessions))
	for name, p := range pf.Sessions {
		if !profileNamePattern.MatchString(name) {
			continue
		}
		if p.CacheTTL <= 0 {
			p.CacheTTL = defaults.CookieCacheDefaultTTLSeconds
		}
		p.Name = name
		valid[name] = p
	}
	pf.Sessions = valid
	return &pf, nil
}
