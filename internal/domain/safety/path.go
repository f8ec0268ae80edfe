package safety

import (
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// AssertSafePath rejects candidate paths that would escape baseDir, after
// resolving symlinks. A missing target falls
// back to lexical resolution with the same boundary check.
func AssertSafePath(baseDir, candidate string) (string, error) {
	if strings.ContainsRune(candidate, 0) || strings.ContainsRune(baseDir, 0) {
		return "", apperrors.NewSafetyError("path contains a NUL byte")
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", apperrors.NewInvalidInputError("invalid base directory: " + err.Error())
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return "", apperrors.NewInvalidInputError("invalid candidate path: " + err.Error())
	}

	resolvedBase := realPath(absBase)
	resolvedCandidate := realPath(absCandidate)

	if resolvedCandidate == resolvedBase || strings.HasPrefix(resolvedCandidate, resolvedBase+string(filepath.Separator)) {
		return resolvedCandidate, nil
	}
	return "", apperrors.NewSafetyError("path escapes base directory: " + candidate)
}

// realPath resolves symlinks via filepath.EvalSymlinks, falling back to the
// lexically-cleaned path when the target (or an ancestor) doesn't exist yet —
// e.g. a file about to be created.
func realPath(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	// Target missing: resolve the longest existing ancestor's symlinks and
	// rejoin the remaining lexical tail, so a not-yet-created file under a
	// symlinked directory is still evaluated against the real directory.
	dir := filepath.Dir(absPath)
	base := filepath.Base(absPath)
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, base)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Clean(absPath)
		}
		base = filepath.Join(filepath.Base(dir), base)
		dir = parent
	}
}

// pathExists is a small helper kept for callers that want to branch on
// existence before calling AssertSafePath (not required by the invariant).
func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
