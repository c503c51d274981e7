package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
)

// DefaultMaxReadBytes bounds read_file when the step sets no max_bytes.
const DefaultMaxReadBytes = 1 << 20

// Module implements the registry.Module interface for this package.
type Module struct {
	// Root anchors relative paths and confines absolute ones. Empty means
	// the process working directory with no confinement.
	Root string
}

type createInput struct {
	Path    string `param:"path"`
	Content string `param:"content"`
}

type editInput struct {
	Path    string `param:"path"`
	Content string `param:"content"`
	Find    string `param:"find"`
	Replace string `param:"replace"`
	Append  bool   `param:"append"`
}

type deleteInput struct {
	Path      string `param:"path"`
	Recursive bool   `param:"recursive"`
}

type transferInput struct {
	Source      string `param:"source"`
	Destination string `param:"destination"`
}

type readInput struct {
	Path     string `param:"path"`
	MaxBytes int64  `param:"max_bytes"`
}

type listInput struct {
	Path          string `param:"path"`
	Recursive     bool   `param:"recursive"`
	IncludeHidden bool   `param:"include_hidden"`
}

type searchInput struct {
	Path       string `param:"path"`
	Pattern    string `param:"pattern"`
	Contains   string `param:"contains"`
	MaxResults int    `param:"max_results"`
}

// FileInfo is one written or inspected file.
type FileInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// EditResult describes an edit_file call.
type EditResult struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	Replacements int    `json:"replacements"`
}

// TransferResult describes a copy or move.
type TransferResult struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Bytes       int64  `json:"bytes"`
}

// ReadResult is the output of read_file.
type ReadResult struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated"`
}

// Entry is one list_directory result.
type Entry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("create_file", createSchema, m.CreateFile))
	r.RegisterTool(registry.NewFunc("edit_file", editSchema, m.EditFile))
	r.RegisterTool(registry.NewFunc("delete_file", deleteSchema, m.DeleteFile))
	r.RegisterTool(registry.NewFunc("copy_file", transferSchema, m.CopyFile))
	r.RegisterTool(registry.NewFunc("move_file", transferSchema, m.MoveFile))
	r.RegisterTool(registry.NewFunc("read_file", readSchema, m.ReadFile))
	r.RegisterTool(registry.NewFunc("list_directory", listSchema, m.ListDirectory))
	r.RegisterTool(registry.NewFunc("file_search", searchSchema, m.FileSearch))
}

// CreateFile writes content to path, creating parent directories and
// replacing any existing file.
func (m *Module) CreateFile(ctx context.Context, params map[string]any) (any, error) {
	var in createInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	path, err := m.resolve(in.Path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file %s: %w", path, err)
	}

	ctxlog.FromContext(ctx).Debug("Created file", "path", path, "size", len(in.Content))
	return FileInfo{Path: path, Size: int64(len(in.Content))}, nil
}

// EditFile modifies an existing file. With find set, every occurrence is
// replaced; with append set, content is appended; otherwise content
// replaces the file body.
func (m *Module) EditFile(ctx context.Context, params map[string]any) (any, error) {
	var in editInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	path, err := m.resolve(in.Path)
	if err != nil {
		return nil, err
	}

	current, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var (
		next         string
		replacements int
	)
	switch {
	case in.Find != "":
		replacements = strings.Count(string(current), in.Find)
		if replacements == 0 {
			return nil, fmt.Errorf("text %q not found in %s", in.Find, path)
		}
		next = strings.ReplaceAll(string(current), in.Find, in.Replace)
	case in.Append:
		next = string(current) + in.Content
	default:
		next = in.Content
	}

	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file %s: %w", path, err)
	}

	ctxlog.FromContext(ctx).Debug("Edited file", "path", path, "replacements", replacements)
	return EditResult{Path: path, Size: int64(len(next)), Replacements: replacements}, nil
}

// DeleteFile removes a file, or a directory tree when recursive is set.
// Wildcards are refused.
func (m *Module) DeleteFile(ctx context.Context, params map[string]any) (any, error) {
	var in deleteInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	if strings.ContainsAny(in.Path, "*?[") {
		return nil, unsafePath(in.Path, "wildcards are not allowed in delete")
	}
	path, err := m.resolve(in.Path)
	if err != nil {
		return nil, err
	}
	if path == "." || path == string(filepath.Separator) || path == m.Root {
		return nil, unsafePath(in.Path, "refusing to delete the workspace root")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() && in.Recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s: %w", path, err)
	}

	ctxlog.FromContext(ctx).Debug("Deleted path", "path", path, "dir", info.IsDir())
	return map[string]any{"path": path, "deleted": true}, nil
}

// CopyFile copies a regular file, creating the destination's parents.
func (m *Module) CopyFile(ctx context.Context, params map[string]any) (any, error) {
	src, dst, err := m.transferPaths(params)
	if err != nil {
		return nil, err
	}

	in, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	ctxlog.FromContext(ctx).Debug("Copied file", "source", src, "destination", dst, "bytes", n)
	return TransferResult{Source: src, Destination: dst, Bytes: n}, nil
}

// MoveFile renames source to destination.
func (m *Module) MoveFile(ctx context.Context, params map[string]any) (any, error) {
	src, dst, err := m.transferPaths(params)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory for %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return nil, fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	ctxlog.FromContext(ctx).Debug("Moved file", "source", src, "destination", dst)
	return TransferResult{Source: src, Destination: dst, Bytes: info.Size()}, nil
}

func (m *Module) transferPaths(params map[string]any) (string, string, error) {
	var in transferInput
	if err := registry.Decode(params, &in); err != nil {
		return "", "", err
	}
	src, err := m.resolve(in.Source)
	if err != nil {
		return "", "", err
	}
	dst, err := m.resolve(in.Destination)
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}

// ReadFile returns up to max_bytes of a file as text.
func (m *Module) ReadFile(ctx context.Context, params map[string]any) (any, error) {
	var in readInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	path, err := m.resolve(in.Path)
	if err != nil {
		return nil, err
	}
	limit := in.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxReadBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	ctxlog.FromContext(ctx).Debug("Read file", "path", path, "bytes", len(data))
	return ReadResult{
		Path:      path,
		Content:   string(data),
		Size:      info.Size(),
		Truncated: info.Size() > int64(len(data)),
	}, nil
}

// ListDirectory lists a directory, optionally walking it recursively.
// Entries are in lexical path order.
func (m *Module) ListDirectory(ctx context.Context, params map[string]any) (any, error) {
	var in listInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		in.Path = "."
	}
	root, err := m.resolve(in.Path)
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if !in.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Name: d.Name(), Path: path, IsDir: d.IsDir(), Size: info.Size()})

		if d.IsDir() && !in.Recursive {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list directory %s: %w", root, err)
	}

	ctxlog.FromContext(ctx).Debug("Listed directory", "path", root, "entries", len(entries))
	return map[string]any{"path": root, "entries": entries}, nil
}

// FileSearch walks path for files whose base name matches pattern (a glob,
// default "*") and, when contains is set, whose content has that substring.
func (m *Module) FileSearch(ctx context.Context, params map[string]any) (any, error) {
	var in searchInput
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		in.Path = "."
	}
	if in.Pattern == "" {
		in.Pattern = "*"
	}
	if _, err := filepath.Match(in.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid search pattern %q: %w", in.Pattern, err)
	}
	root, err := m.resolve(in.Path)
	if err != nil {
		return nil, err
	}

	errLimit := errors.New("limit reached")
	matches := []string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(in.Pattern, d.Name()); !ok {
			return nil
		}
		if in.Contains != "" {
			found, err := fileContains(path, in.Contains)
			if err != nil || !found {
				return err
			}
		}
		matches = append(matches, path)
		if in.MaxResults > 0 && len(matches) >= in.MaxResults {
			return errLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return nil, fmt.Errorf("failed to search %s: %w", root, err)
	}

	ctxlog.FromContext(ctx).Debug("Searched files", "path", root, "pattern", in.Pattern, "matches", len(matches))
	return map[string]any{"matches": matches, "count": len(matches)}, nil
}

func fileContains(path, needle string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), DefaultMaxReadBytes)
	for sc.Scan() {
		if strings.Contains(sc.Text(), needle) {
			return true, nil
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, bufio.ErrTooLong) {
		return false, err
	}
	return false, nil
}
