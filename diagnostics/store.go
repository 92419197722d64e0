// Package diagnostics stores artifacts captured for degraded extractions.
// Retention and cleanup are left to whoever owns the directory.
package diagnostics

import (
	"path/filepath"
	"regexp"

	"github.com/go-rod/rod/lib/utils"
	"github.com/use-agent/specgrab/dom"
)

// Store persists an artifact under a name and returns where it went.
type Store interface {
	Save(name string, a *dom.Artifact) (string, error)
}

// DirStore writes artifacts to <Dir>/<sanitized name><ext>. A later
// artifact for the same name replaces the earlier one.
type DirStore struct {
	Dir string
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PathFor returns the conventional path for name and ext.
func (s DirStore) PathFor(name, ext string) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	if safe == "" || safe == "." || safe == ".." {
		safe = "_"
	}
	return filepath.Join(s.Dir, safe+ext)
}

func (s DirStore) Save(name string, a *dom.Artifact) (string, error) {
	p := s.PathFor(name, a.Ext)
	if err := utils.OutputFile(p, a.Data); err != nil {
		return "", err
	}
	return p, nil
}
