package version

import (
	"strings"
	"testing"
)

func saveAndRestore() func() {
	origVersion, origCommit := Version, GitCommit
	return func() {
		Version = origVersion
		GitCommit = origCommit
	}
}

func TestGetDefaults(t *testing.T) {
	defer saveAndRestore()()
	Version = "dev"
	GitCommit = ""

	info := Get()
	if info.Version != "dev" {
		t.Errorf("expected version 'dev', got %q", info.Version)
	}
	if info.IsRelease {
		t.Error("dev should not be a release")
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"version only", Info{Version: "1.2.0"}, "1.2.0"},
		{"with commit", Info{Version: "1.2.0", GitCommit: "abc1234"}, "1.2.0-abc1234"},
		{"dirty", Info{Version: "1.2.0", GitCommit: "abc1234", IsDirty: true}, "1.2.0-abc1234-dirty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.info.Short(); got != tc.want {
				t.Errorf("Short() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLinkTimeCommitIsShortened(t *testing.T) {
	defer saveAndRestore()()
	Version = "2.0.0"
	GitCommit = "0123456789abcdef"

	info := Get()
	if info.GitCommit != "0123456" {
		t.Errorf("commit = %q", info.GitCommit)
	}
	if !info.IsRelease {
		t.Error("2.0.0 should be a release")
	}
}

func TestUserAgent(t *testing.T) {
	defer saveAndRestore()()
	Version = "3.1.0"
	GitCommit = "feedbee"

	ua := UserAgent("bryce")
	if !strings.HasPrefix(ua, "bryce/3.1.0-feedbee") {
		t.Errorf("UserAgent() = %q", ua)
	}
}
