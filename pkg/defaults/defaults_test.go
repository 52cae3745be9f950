package defaults_test

import (
	"regexp"
	"testing"

	"github.com/redwire/redwire/pkg/defaults"
)

func TestVersionIsSemver(t *testing.T) {
	semverPattern := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9]+)?$`)
	if !semverPattern.MatchString(defaults.Version) {
		t.Errorf("defaults.Version (%s) is not valid semver", defaults.Version)
	}
}

func TestUserAgent(t *testing.T) {
	if got := defaults.UserAgent(""); got != defaults.UAMinimal {
		t.Errorf("UserAgent(\"\") = %q, want %q", got, defaults.UAMinimal)
	}
	if got, want := defaults.UserAgent("probe"), "redwire-gateway/"+defaults.Version+" (probe)"; got != want {
		t.Errorf("UserAgent(\"probe\") = %q, want %q", got, want)
	}
}

func TestConcurrencyOrdering(t *testing.T) {
	if !(defaults.ConcurrencyMinimal < defaults.ConcurrencyLow &&
		defaults.ConcurrencyLow < defaults.ConcurrencyMedium &&
		defaults.ConcurrencyMedium < defaults.ConcurrencyHigh &&
		defaults.ConcurrencyHigh < defaults.ConcurrencyMax) {
		t.Fatal("concurrency tiers must be strictly increasing")
	}
}

func TestBodyTruncateLimitIsOneMiB(t *testing.T) {
	if defaults.BodyTruncateLimit != 1024*1024 {
		t.Fatalf("BodyTruncateLimit = %d, want 1MiB", defaults.BodyTruncateLimit)
	}
}

func TestExitCodesDistinct(t *testing.T) {
	codes := map[int]string{
		defaults.ExitSuccess:       "success",
		defaults.ExitUserError:     "user",
		defaults.ExitStoreError:    "store",
		defaults.ExitInternalError: "internal",
	}
	if len(codes) != 4 {
		t.Fatalf("exit codes must be distinct, got %v", codes)
	}
}
