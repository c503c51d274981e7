package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/fsutil"
	"github.com/vk/burstmission/internal/mission"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions LoadDir picks up.
var Extensions = []string{".yaml", ".yml", ".json", ".hcl"}

// ErrEmptyPath is returned when Load is called without a path.
var ErrEmptyPath = errors.New("mission path must not be empty")

// Load reads, parses and validates the mission at path.
func Load(ctx context.Context, path string) (*mission.Mission, error) {
	logger := ctxlog.FromContext(ctx)
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mission file %s: %w", path, err)
	}

	var m *mission.Mission
	format := formatOf(path)
	logger.Debug("Parsing mission file.", "path", path, "format", format)
	switch format {
	case "json":
		m, err = parseJSON(data)
	case "hcl":
		m, err = parseHCL(ctx, data, path)
	default:
		m, err = parseYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse mission file %s: %w", path, err)
	}

	if err := mission.Validate(m); err != nil {
		return nil, fmt.Errorf("mission file %s: %w", path, err)
	}
	logger.Debug("Mission loaded.", "path", path, "mission", m.Name, "steps", len(m.Steps))
	return m, nil
}

// LoadDir loads every mission file under dir concurrently. The result is
// ordered by file path; the first failure cancels the remaining loads.
func LoadDir(ctx context.Context, dir string) ([]*mission.Mission, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtensions(dir, Extensions...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan mission directory %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no mission files found in %s", dir)
	}
	logger.Debug("Discovered mission files.", "count", len(files))

	missions := make([]*mission.Mission, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := Load(gctx, file)
			if err != nil {
				return err
			}
			missions[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return missions, nil
}

// LoadPath loads a single file, or every mission file when path is a directory.
func LoadPath(ctx context.Context, path string) ([]*mission.Mission, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(ctx, path)
	}
	m, err := Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return []*mission.Mission{m}, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".hcl":
		return "hcl"
	default:
		return "yaml"
	}
}

func parseJSON(data []byte) (*mission.Mission, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var m mission.Mission
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseYAML(data []byte) (*mission.Mission, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m mission.Mission
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
