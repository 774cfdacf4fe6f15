package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/medtrust/console/internal/config"
	"github.com/medtrust/console/internal/domain/auditlog"
)

func TestFeedForRole(t *testing.T) {
	cases := []struct {
		role string
		want auditlog.Feed
	}{
		{"admin", auditlog.FeedAdmin},
		{"Admin", auditlog.FeedAdmin},
		{"doctor", auditlog.FeedDoctor},
		{"nurse", auditlog.FeedNurse},
		{"patient", auditlog.FeedPatient},
		{"", auditlog.FeedDoctor},
	}
	for _, tc := range cases {
		if got := feedForRole(tc.role); got != tc.want {
			t.Errorf("feedForRole(%q) = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestResolveToken(t *testing.T) {
	inline := &config.Config{Token: "inline-token"}
	if tok, err := resolveToken(inline); err != nil || tok != "inline-token" {
		t.Fatalf("resolveToken(inline) = %q, %v", tok, err)
	}

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	fromFile := &config.Config{Token: "ignored", TokenFile: path}
	if tok, err := resolveToken(fromFile); err != nil || tok != "file-token" {
		t.Fatalf("resolveToken(file) = %q, %v", tok, err)
	}

	missing := &config.Config{TokenFile: filepath.Join(t.TempDir(), "absent")}
	if _, err := resolveToken(missing); err == nil {
		t.Fatal("resolveToken with a missing token file should fail")
	}
}
