// Package resolver maps request paths onto files inside a base directory.
//
// Every route names a directory and is served by that directory's
// index.html: "/" and "" map to <base>/index.html, "/docs" and "/docs/" to
// <base>/docs/index.html. Query strings and fragments are ignored.
//
// The candidate path is canonicalized (absolute, symlinks resolved) and must
// stay inside the canonical base directory, compared path component by path
// component. This rejects ".." traversal as well as symlinks that point out
// of the base. A confinement violation is reported exactly like a missing
// file.
//
// Resolution returns a path, not an open file. The file can change or
// disappear between Resolve and the caller opening it; callers must treat
// a later open or read failure as an ordinary I/O error.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	httperrors "github.com/nczempin/0005_std_lib_http_server/errors"
)

const (
	// IndexFile serves every route directory
	IndexFile = "index.html"

	// FallbackFile is served with 404 when resolution fails
	FallbackFile = "error404.html"
)

// NormalizePath turns a raw request path into a relative path ending in
// IndexFile. Everything from the first '?' and then the first '#' is
// dropped, and empty segments are discarded.
func NormalizePath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}

	segments := make([]string, 0, 8)
	for _, segment := range strings.Split(raw, "/") {
		if segment == "" {
			continue
		}
		segments = append(segments, segment)
	}
	segments = append(segments, IndexFile)

	return filepath.Join(segments...)
}

// CanonicalBase returns the absolute, symlink-free form of base.
// An empty base means the working directory.
func CanonicalBase(base string) (string, error) {
	if base == "" {
		base = "."
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return "", httperrors.NewResolveError(httperrors.ResolveErrorBaseDirUnavailable, base, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", httperrors.NewResolveError(httperrors.ResolveErrorBaseDirUnavailable, base, err)
	}

	return canonical, nil
}

// Within reports whether path is base or lies below it. Both must be
// absolute and clean.
func Within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Resolve maps rawPath onto an existing regular file inside base and
// returns its canonical path.
//
// A base directory that cannot be canonicalized yields
// ResolveErrorBaseDirUnavailable. Every other failure, including escaping
// the base, yields ResolveErrorNotFound with no detail.
func Resolve(base, rawPath string) (string, error) {
	canonicalBase, err := CanonicalBase(base)
	if err != nil {
		return "", err
	}

	candidate := filepath.Join(canonicalBase, NormalizePath(rawPath))
	canonical, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", notFound()
	}

	if !Within(canonicalBase, canonical) {
		return "", notFound()
	}

	info, err := os.Stat(canonical)
	if err != nil || !info.Mode().IsRegular() {
		return "", notFound()
	}

	return canonical, nil
}

func notFound() error {
	return httperrors.NewResolveError(httperrors.ResolveErrorNotFound, "", nil)
}

// Resolver binds Resolve to one configured base directory.
// The base is canonicalized again on every call; nothing is cached.
type Resolver struct {
	base string
}

// New creates a Resolver for base
func New(base string) *Resolver {
	return &Resolver{base: base}
}

// Base returns the configured, uncanonicalized base directory
func (r *Resolver) Base() string {
	return r.base
}

// Resolve maps a raw request path onto a servable file
func (r *Resolver) Resolve(rawPath string) (string, error) {
	return Resolve(r.base, rawPath)
}

// FallbackPath returns the path of the 404 page under the base directory.
// The file itself is not checked here.
func (r *Resolver) FallbackPath() (string, error) {
	canonicalBase, err := CanonicalBase(r.base)
	if err != nil {
		return "", err
	}
	return filepath.Join(canonicalBase, FallbackFile), nil
}
