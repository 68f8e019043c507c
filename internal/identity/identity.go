// Package identity derives the stable identifiers used throughout mybrain.
//
// A workbase is identified by a hash of its normalized absolute path, and a
// memory by its type, its workbase and a digest of its exact text. Both are
// pure functions: the same input yields the same id on every run and every
// operating system, which makes re-initialization and re-insertion idempotent.
package identity

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// workbaseIDPattern matches an already-derived workbase id (hex SHA-256).
var workbaseIDPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// NormalizePath returns the canonical form of path that workbase ids are
// derived from: absolute, cleaned, slash-separated and lower-cased.
// It does not touch the filesystem beyond resolving the working directory.
func NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return strings.ToLower(filepath.ToSlash(abs))
}

// WorkbaseID returns the deterministic id for the workbase rooted at path.
func WorkbaseID(path string) string {
	sum := sha256.Sum256([]byte(NormalizePath(path)))
	return hex.EncodeToString(sum[:])
}

// IsWorkbaseID reports whether ref already has the shape of a workbase id.
func IsWorkbaseID(ref string) bool {
	return workbaseIDPattern.MatchString(ref)
}

// Resolve accepts either a workbase id or a path and returns the id.
// Tool callers pass whichever they have at hand.
func Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if IsWorkbaseID(ref) {
		return ref
	}
	return WorkbaseID(ref)
}

// ContentDigest is the dedup digest of a memory's exact text.
func ContentDigest(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// MemoryID returns "{type}_{workbaseID}_{md5(content)}".
func MemoryID(memType, workbaseID, content string) string {
	return fmt.Sprintf("%s_%s_%s", memType, workbaseID, ContentDigest(content))
}

// ContextID returns the id of the single structural-context record of a workbase.
func ContextID(workbaseID string) string {
	return "context_" + workbaseID
}
