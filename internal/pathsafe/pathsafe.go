// Package pathsafe canonicalizes and bounds every externally supplied
// path to the workspace root before it reaches any other component
// (§4.1). It is the single entry point for path validation: the
// watcher, the initial scan walker, and the CLI all route paths
// through Validate before anything reads the filesystem.
//
// Grounded on the teacher's absolute/relative path conversion layer
// (pkg/pathutil) and its file-validation posture (internal/security),
// generalized here into the canonicalize-then-bound-to-root contract
// the design calls for.
package pathsafe

import (
	"fmt"
	"path/filepath"
	"strings"

	magerrors "github.com/oldnordic/magellan/internal/errors"
)

// Validator canonicalizes paths against a fixed workspace root.
type Validator struct {
	root string // canonical, absolute, OS-native
}

// New creates a Validator bound to root. root must already exist and
// be resolvable; callers typically call this once at startup after
// canonicalizing the CLI-supplied --root/--db directory arguments.
func New(root string) (*Validator, error) {
	canon, err := canonicalize(root)
	if err != nil {
		return nil, magerrors.New(magerrors.CodeCannotCanonicalize, "pathsafe.New", err).WithFile(root)
	}
	return &Validator{root: canon}, nil
}

// Root returns the validator's canonical root.
func (v *Validator) Root() string { return v.root }

// suspiciousTraversal rejects strings with more than two "../"
// segments, a leading "../", or mixed "./a/../../" patterns (a "./"
// path whose ".." segments climb above its starting point), before
// any filesystem call — these are declared suspicious regardless of
// whether the target exists (§4.1).
func suspiciousTraversal(raw string) bool {
	normalized := strings.ReplaceAll(raw, "\\", "/")
	if strings.HasPrefix(normalized, "../") || normalized == ".." {
		return true
	}
	if strings.HasPrefix(normalized, "./") {
		depth := 0
		for _, seg := range strings.Split(normalized, "/") {
			switch seg {
			case "", ".":
			case "..":
				depth--
				if depth < 0 {
					return true
				}
			default:
				depth++
			}
		}
	}
	count := strings.Count(normalized, "../")
	return count > 2
}

// Validate converts path (absolute or relative to the validator's
// root) into a canonical path guaranteed to lie inside root, or
// returns one of CodePathOutsideRoot, CodePathSuspiciousTraversal,
// CodePathSymlinkEscape, CodeCannotCanonicalize.
func (v *Validator) Validate(path string) (string, error) {
	if suspiciousTraversal(path) {
		return "", magerrors.New(magerrors.CodePathSuspiciousTraversal, "pathsafe.Validate",
			fmt.Errorf("path %q contains a suspicious traversal pattern", path)).WithFile(path)
	}

	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(v.root, candidate)
	}

	canon, err := canonicalize(candidate)
	if err != nil {
		// A just-deleted file resolving to ENOENT is expected and
		// silently skipped by callers; still surface it as a coded
		// error so the reconciler can distinguish it from a real read.
		return "", magerrors.New(magerrors.CodeCannotCanonicalize, "pathsafe.Validate", err).WithFile(path)
	}

	if !isWithin(v.root, canon) {
		// Lexically inside root but resolving outside it: a symlink escape.
		code := magerrors.CodePathOutsideRoot
		if lexical, aerr := filepath.Abs(filepath.FromSlash(candidate)); aerr == nil && isWithin(v.root, filepath.Clean(lexical)) {
			code = magerrors.CodePathSymlinkEscape
		}
		return "", magerrors.New(code, "pathsafe.Validate",
			fmt.Errorf("%q resolves outside workspace root %q", canon, v.root)).WithFile(path)
	}

	return canon, nil
}

// ValidateNoFollow is like Validate but rejects an existing symlink at
// path whose target escapes root, without resolving symlinks in
// intermediate directories beyond what EvalSymlinks naturally does.
// Used by the scan walker, which must not auto-follow symlinks (§4.1, §4.10).
func (v *Validator) ValidateNoFollow(path string) (string, error) {
	canon, err := v.Validate(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(canon)
	if err != nil {
		// Missing target: treat like any other cannot-canonicalize case.
		return "", magerrors.New(magerrors.CodeCannotCanonicalize, "pathsafe.ValidateNoFollow", err).WithFile(path)
	}
	if !isWithin(v.root, resolved) {
		return "", magerrors.New(magerrors.CodePathSymlinkEscape, "pathsafe.ValidateNoFollow",
			fmt.Errorf("symlink %q escapes workspace root %q to %q", path, v.root, resolved)).WithFile(path)
	}
	return canon, nil
}

// canonicalize resolves path to an absolute, symlink-resolved, clean
// form with forward-slash-normalized comparison semantics.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(filepath.FromSlash(path))
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return filepath.Clean(resolved), nil
}

// isWithin reports whether candidate is root itself or a descendant of it.
func isWithin(root, candidate string) bool {
	rootSlash := filepath.ToSlash(root)
	candSlash := filepath.ToSlash(candidate)
	if candSlash == rootSlash {
		return true
	}
	return strings.HasPrefix(candSlash, rootSlash+"/")
}

// ToWorkspaceRelative converts an already-validated canonical path to
// the workspace-relative, forward-slash form stored in File.Path (§3).
func (v *Validator) ToWorkspaceRelative(canon string) (string, error) {
	rel, err := filepath.Rel(v.root, canon)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
