// Package workoutfile reads workouts from YAML, TOML or JSON files.
package workoutfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/meltforce/hangtime/internal/models"
)

// Format is a workout file encoding.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
	JSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, true
	case ".toml":
		return TOML, true
	case ".json":
		return JSON, true
	}
	return "", false
}

// Load reads and validates a workout file. Missing workout and set ids are
// generated so reps logged against the workout have stable set ids.
func Load(path string) (*models.Workout, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported workout file extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workout file: %w", err)
	}
	w, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse decodes a workout. Unknown fields are rejected.
func Parse(data []byte, format Format) (*models.Workout, error) {
	var w models.Workout
	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	case TOML:
		md, err := toml.Decode(string(data), &w)
		if err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing toml: unknown field %q", undecoded[0].String())
		}
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&w); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if w.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	assignIDs(&w)
	return &w, nil
}

// Find lists workout files under dir, sorted by path.
func Find(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := FormatOf(path); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func assignIDs(w *models.Workout) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	for i := range w.Sets {
		w.Sets[i].Position = i
		if w.Sets[i].ID == uuid.Nil {
			w.Sets[i].ID = uuid.New()
		}
	}
}
