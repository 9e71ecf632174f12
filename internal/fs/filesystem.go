package fs

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"drive-go/internal/drive"
)

// OSFilesystem reads import sources from the real filesystem.
type OSFilesystem struct {
	ignore *IgnoreMatcher
}

// NewOSFilesystem creates a filesystem that skips paths matching ignore
// (from config) as well as the patterns in any .driveignore it finds.
func NewOSFilesystem(ignore []string) *OSFilesystem {
	return &OSFilesystem{ignore: NewIgnoreMatcher(append(append([]string(nil), defaultIgnorePatterns...), ignore...))}
}

// Resolve validates a raw path and returns a LocalPath.
func (o *OSFilesystem) Resolve(rawPath string) (*drive.LocalPath, error) {
	const op = "resolve"
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &drive.Error{Kind: drive.KindNotFound, Op: op, Message: "no such file or directory", Path: absPath, Err: err}
		}
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return nil, &drive.Error{Kind: drive.KindValidation, Op: op, Message: "symlinks not supported", Path: absPath}
	case mode&os.ModeDevice != 0:
		return nil, &drive.Error{Kind: drive.KindValidation, Op: op, Message: "device files not supported", Path: absPath}
	case mode&os.ModeNamedPipe != 0:
		return nil, &drive.Error{Kind: drive.KindValidation, Op: op, Message: "named pipes not supported", Path: absPath}
	case mode&os.ModeSocket != 0:
		return nil, &drive.Error{Kind: drive.KindValidation, Op: op, Message: "sockets not supported", Path: absPath}
	}

	return drive.NewLocalPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (o *OSFilesystem) Open(p *drive.LocalPath) (io.ReadCloser, error) {
	if p.IsDir() {
		return nil, &drive.Error{Kind: drive.KindValidation, Op: "open", Message: "cannot open directory as file", Path: p.String()}
	}
	return os.Open(p.String())
}

// FindFiles discovers regular files under dir. Ignored directories are not
// descended into. Results are in lexical order.
func (o *OSFilesystem) FindFiles(dir *drive.LocalPath, recursive bool) ([]*drive.LocalFile, error) {
	if !dir.IsDir() {
		return nil, &drive.Error{Kind: drive.KindValidation, Op: "find files", Message: "path is not a directory", Path: dir.String()}
	}

	var files []*drive.LocalFile
	if err := o.walk(dir.String(), "", o.ignore, recursive, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// walk reads absDir (at rel below the import root), layering the
// directory's own ignore file onto matcher.
func (o *OSFilesystem) walk(absDir, rel string, matcher *IgnoreMatcher, recursive bool, out *[]*drive.LocalFile) error {
	local, err := ParseIgnoreFile(filepath.Join(absDir, IgnoreFileName))
	if err != nil {
		return err
	}
	if len(local) > 0 {
		matcher = matcher.With(prefixPatterns(rel, local))
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}
	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "" {
			childRel = path.Join(rel, entry.Name())
		}
		childAbs := filepath.Join(absDir, entry.Name())

		if entry.IsDir() {
			if !recursive || matcher.MatchDir(childRel) {
				continue
			}
			if err := o.walk(childAbs, childRel, matcher, recursive, out); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() || matcher.Match(childRel) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", childAbs, err)
		}
		*out = append(*out, &drive.LocalFile{
			Path:         drive.NewLocalPath(childAbs, false, info),
			RelativePath: childRel,
		})
	}
	return nil
}

// prefixPatterns anchors path patterns read from a nested ignore file to
// the directory that holds it. Basename patterns apply at any depth and are
// left alone.
func prefixPatterns(rel string, patterns []string) []string {
	if rel == "" {
		return patterns
	}
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		body := strings.TrimSuffix(p, "/")
		if !strings.Contains(body, "/") {
			out = append(out, p)
			continue
		}
		anchored := path.Join(rel, strings.TrimPrefix(body, "/"))
		if strings.HasSuffix(p, "/") {
			anchored += "/"
		}
		out = append(out, anchored)
	}
	return out
}

var _ drive.LocalFilesystem = (*OSFilesystem)(nil)
