package git

import (
	"path"
	"path/filepath"
	"strings"
)

// RevisionID is an opaque, content-derived commit identifier.
// The empty RevisionID means "no revision".
type RevisionID string

// IsZero reports whether r is the empty revision.
func (r RevisionID) IsZero() bool {
	return r == ""
}

// Short returns the first 8 characters of r, for display.
func (r RevisionID) Short() string {
	if len(r) > 8 {
		return string(r[:8])
	}
	if r == "" {
		return "none"
	}
	return string(r)
}

func (r RevisionID) String() string {
	return string(r)
}

// ChangeKind classifies a single path change between two revisions.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Deleted
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeRecord is one entry of a revision diff. For Renamed records Path
// is the new path; the old path is not carried.
type ChangeRecord struct {
	Kind ChangeKind
	Path string
}

// NormalizePath converts p to the corpus-relative, slash-separated form
// used as the document key.
func NormalizePath(p string) string {
	p = filepath.ToSlash(p)
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}
