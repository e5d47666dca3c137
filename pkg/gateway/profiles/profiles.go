// Package profiles selects the agent configuration (system prompt and tool
// catalog) that applies to the client's current page.
package profiles

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/vango-go/vai-navigator/pkg/core/types"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Profile is one agent configuration.
type Profile struct {
	Name         string           `json:"name" yaml:"name"`
	PathPrefixes []string         `json:"path_prefixes,omitempty" yaml:"path_prefixes"`
	ToolNames    []string         `json:"tools,omitempty" yaml:"tools"`
	SystemPrompt string           `json:"system_prompt" yaml:"system_prompt"`
	Tools        []types.ToolSpec `json:"-" yaml:"-"`
}

// Predicate reports whether a profile applies to a page.
type Predicate func(page types.PageContext) bool

type entry struct {
	match   Predicate
	profile *Profile
}

// Table is an ordered list of (predicate, profile) pairs. Select returns the
// first profile whose predicate matches.
type Table struct {
	entries []entry
}

type file struct {
	Tools    []types.ToolSpec `yaml:"tools"`
	Profiles []Profile        `yaml:"profiles"`
}

var pathPrefixPattern = regexp.MustCompile(`^/\S*$`)

// Default loads the embedded profile table.
func Default() (*Table, error) {
	data, err := configFiles.ReadFile("config/default.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded profiles: %w", err)
	}
	return Parse(data)
}

// LoadFile loads a profile table from a YAML file. An empty path loads the
// embedded default.
func LoadFile(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a YAML profile table.
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined")
	}

	catalog := make(map[string]types.ToolSpec, len(f.Tools))
	known := make([]any, 0, len(f.Tools))
	for i, tool := range f.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return nil, fmt.Errorf("tools[%d]: name is required", i)
		}
		if _, dup := catalog[tool.Name]; dup {
			return nil, fmt.Errorf("tools[%d]: duplicate tool %q", i, tool.Name)
		}
		catalog[tool.Name] = tool
		known = append(known, tool.Name)
	}

	seen := make(map[string]bool, len(f.Profiles))
	profiles := make([]*Profile, 0, len(f.Profiles))
	for i := range f.Profiles {
		p := f.Profiles[i]
		err := validation.ValidateStruct(&p,
			validation.Field(&p.Name, validation.Required),
			validation.Field(&p.SystemPrompt, validation.Required),
			validation.Field(&p.PathPrefixes, validation.Each(validation.Match(pathPrefixPattern))),
			validation.Field(&p.ToolNames, validation.Each(validation.In(known...))),
		)
		if err != nil {
			return nil, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("profiles[%d]: duplicate profile %q", i, p.Name)
		}
		seen[p.Name] = true

		p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
		p.Tools = make([]types.ToolSpec, 0, len(p.ToolNames))
		for _, name := range p.ToolNames {
			p.Tools = append(p.Tools, catalog[name])
		}
		profiles = append(profiles, &p)
	}

	t := &Table{}
	for _, p := range profiles {
		t.Add(PathPrefix(p.PathPrefixes...), p)
	}
	return t, nil
}

// Add appends a (predicate, profile) pair. A nil predicate matches every page.
func (t *Table) Add(match Predicate, p *Profile) {
	if match == nil {
		match = func(types.PageContext) bool { return true }
	}
	t.entries = append(t.entries, entry{match: match, profile: p})
}

// Select returns the first profile matching page, or nil.
func (t *Table) Select(page types.PageContext) *Profile {
	if t == nil {
		return nil
	}
	for _, e := range t.entries {
		if e.match(page) {
			return e.profile
		}
	}
	return nil
}

// Names lists profile names in evaluation order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.profile.Name)
	}
	return out
}

// PathPrefix matches pages whose URL path equals one of prefixes or lies below
// it. With no prefixes it matches every page.
func PathPrefix(prefixes ...string) Predicate {
	if len(prefixes) == 0 {
		return nil
	}
	return func(page types.PageContext) bool {
		path := pagePath(page.URL)
		for _, prefix := range prefixes {
			prefix = strings.TrimSuffix(prefix, "/")
			if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/") {
				return true
			}
		}
		return false
	}
}

func pagePath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return u.Path
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if !strings.HasPrefix(raw, "/") {
		return "/"
	}
	return raw
}
