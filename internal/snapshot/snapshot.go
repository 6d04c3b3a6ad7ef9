// Package snapshot stores the expected, already-normalized output of each
// scenario and resolves it for a platform.
//
// Snapshots live in a TOML document with one table per scenario. A field is
// either a plain string, which applies everywhere, or a table keyed by
// platform:
//
//	[user_dict_load]
//	stdout = ""
//	stderr.windows = '''
//	{windows-video-cards}
//	'''
//	stderr.unix = ""
//
// Resolution tries the exact platform, then the platform family ("unix" for
// every non-windows platform), then the unqualified value ("default" in a
// platform table).
package snapshot

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// Platform keys with special meaning.
const (
	FamilyUnix = "unix"
	Default    = "default"
	Windows    = "windows"
)

// ErrNotFound is matched by *NotFoundError.
var ErrNotFound = errors.New("snapshot: not found")

// NotFoundError reports a missing snapshot.
type NotFoundError struct {
	Section string
	Field   string

	// Platform is the platform the lookup was made for, not the family.
	Platform string
}

// Error names the section, field and platform that had no entry.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("snapshot: no %s.%s for platform %s", e.Section, e.Field, e.Platform)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Entry is one stored text. Platform is empty for unqualified entries.
type Entry struct {
	Section  string `json:"section"`
	Field    string `json:"field"`
	Platform string `json:"platform,omitempty"`
	Text     string `json:"text"`
}

// Family returns the platform family used as the second resolution step.
func Family(platform string) string {
	if platform == Windows {
		return Windows
	}
	return FamilyUnix
}

// field maps a platform key to its text. "" is the unqualified entry.
type field map[string]string

// Store holds parsed snapshots. It is immutable after construction and safe
// for concurrent use.
type Store struct {
	// sections maps section -> field name -> per-platform text.
	sections map[string]map[string]field
}

// Parse decodes a snapshots document.
func Parse(data []byte) (*Store, error) {
	var raw map[string]map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("snapshot: parse: %w", err)
	}

	s := &Store{sections: make(map[string]map[string]field, len(raw))}
	for section, fields := range raw {
		s.sections[section] = make(map[string]field, len(fields))
		for name, v := range fields {
			f, err := parseField(v)
			if err != nil {
				return nil, fmt.Errorf("snapshot: %s.%s: %w", section, name, err)
			}
			s.sections[section][name] = f
		}
	}
	return s, nil
}

// parseField accepts either a bare string or a table keyed by platform.
// The "default" key is stored as the unqualified entry.
func parseField(v any) (field, error) {
	switch v := v.(type) {
	case string:
		return field{"": v}, nil
	case map[string]any:
		f := make(field, len(v))
		for platform, text := range v {
			str, ok := text.(string)
			if !ok {
				return nil, fmt.Errorf("platform %q: expected string, got %T", platform, text)
			}
			if platform == Default {
				platform = ""
			}
			f[platform] = str
		}
		return f, nil
	default:
		return nil, fmt.Errorf("expected string or platform table, got %T", v)
	}
}

// Load reads and parses a snapshots file from fs.
func Load(fs afero.Fs, path string) (*Store, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Resolve returns the text for section.field on platform.
func (s *Store) Resolve(section, name, platform string) (string, error) {
	f, ok := s.sections[section][name]
	if ok {
		// Exact platform, then family, then unqualified.
		for _, key := range []string{platform, Family(platform), ""} {
			if text, ok := f[key]; ok {
				return text, nil
			}
		}
	}
	return "", &NotFoundError{Section: section, Field: name, Platform: platform}
}

// Overlay returns a store where every field present in top replaces the
// same field in s.
func (s *Store) Overlay(top *Store) *Store {
	out := &Store{sections: make(map[string]map[string]field, len(s.sections))}
	for _, src := range []*Store{s, top} {
		if src == nil {
			continue
		}
		for section, fields := range src.sections {
			if out.sections[section] == nil {
				out.sections[section] = make(map[string]field)
			}
			maps.Copy(out.sections[section], fields)
		}
	}
	return out
}

// Sections lists section names in sorted order.
func (s *Store) Sections() []string {
	return slices.Sorted(maps.Keys(s.sections))
}

// Entries flattens the store, sorted by section, field and platform.
func (s *Store) Entries() []Entry {
	var out []Entry
	for section, fields := range s.sections {
		for name, f := range fields {
			for platform, text := range f {
				out = append(out, Entry{Section: section, Field: name, Platform: platform, Text: text})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := strings.Compare(a.Section, b.Section); c != 0 {
			return c < 0
		}
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c < 0
		}
		return a.Platform < b.Platform
	})
	return out
}

// Resolver looks up snapshots for one platform.
type Resolver interface {
	// Resolve returns the text for section.field, falling back from the
	// exact platform to its family and then to the unqualified entry.
	Resolve(section, field string) (string, error)

	// Platform is the platform lookups are made for.
	Platform() string
}

// platformResolver is a Store bound to one platform.
type platformResolver struct {
	store    *Store
	platform string
}

// Resolve looks up section.field for the bound platform.
func (r platformResolver) Resolve(section, field string) (string, error) {
	return r.store.Resolve(section, field, r.platform)
}

// Platform returns the bound platform.
func (r platformResolver) Platform() string { return r.platform }

// For binds the store to a platform.
func (s *Store) For(platform string) Resolver {
	return platformResolver{store: s, platform: platform}
}
