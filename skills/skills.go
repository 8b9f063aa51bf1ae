// Package skills loads skill definitions from a directory tree and
// renders them as prompt text. A skill is descriptive only: it tells
// the model about capabilities reachable through existing generic
// tools (typically shell execution), it never registers new callables.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/parley/errors"
	"gopkg.in/yaml.v3"
)

// DefaultDir is the skill directory relative to the working directory.
const DefaultDir = ".parley/skills"

// skillFile is the required metadata file inside each skill directory.
const skillFile = "SKILL.md"

// Skill is one loaded skill definition.
type Skill struct {
	Name         string            // unique key; duplicate names are last-write-wins
	Description  string
	AllowedTools string            // e.g. "Bash(playwright-cli:*)"
	Body         string            // markdown after the front-matter
	References   map[string]string // references/<name>.md, keyed by file stem
	Path         string
}

// frontmatter mirrors the YAML header of a SKILL.md file.
type frontmatter struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	AllowedTools string `yaml:"allowed-tools"`
}

// Index holds all loaded skills plus a reverse lookup from allowed-tool
// pattern to the skills providing it.
type Index struct {
	skills  map[string]*Skill
	toolMap map[string][]string // pattern (e.g. "playwright-cli:*") -> skill names
}

// EnabledFunc decides whether a skill participates in the index.
type EnabledFunc func(name string) bool

// Load walks the skill directory once and builds the index. A missing
// directory yields an empty index, not an error. enabled may be nil,
// in which case every skill is included.
func Load(dir string, enabled EnabledFunc) (*Index, error) {
	idx := &Index{
		skills:  make(map[string]*Skill),
		toolMap: make(map[string][]string),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, errors.Wrapf(err, "failed to read skills directory '%s'", dir)
	}

	// Sort for deterministic last-write-wins on duplicate names.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skill, err := loadSkill(filepath.Join(dir, entry.Name()))
		if err != nil {
			// A malformed skill should not take down startup.
			fmt.Fprintf(os.Stderr, "Warning: skipping skill '%s': %v\n", entry.Name(), err)
			continue
		}
		if skill == nil {
			continue // no SKILL.md in this directory
		}
		if enabled != nil && !enabled(skill.Name) {
			continue
		}
		idx.skills[skill.Name] = skill
	}

	idx.buildToolMap()
	return idx, nil
}

// loadSkill parses one skill directory. Returns (nil, nil) when the
// directory has no SKILL.md.
func loadSkill(dir string) (*Skill, error) {
	path := filepath.Join(dir, skillFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	meta, body, err := parseFrontmatter(string(data))
	if err != nil {
		return nil, err
	}

	skill := &Skill{
		Name:         meta.Name,
		Description:  meta.Description,
		AllowedTools: meta.AllowedTools,
		Body:         body,
		References:   map[string]string{},
		Path:         dir,
	}
	if skill.Name == "" {
		skill.Name = filepath.Base(dir)
	}

	refsDir := filepath.Join(dir, "references")
	refs, err := os.ReadDir(refsDir)
	if err == nil {
		for _, ref := range refs {
			if ref.IsDir() || !strings.HasSuffix(ref.Name(), ".md") {
				continue
			}
			content, err := os.ReadFile(filepath.Join(refsDir, ref.Name()))
			if err != nil {
				continue
			}
			stem := strings.TrimSuffix(ref.Name(), ".md")
			skill.References[stem] = string(content)
		}
	}

	return skill, nil
}

// parseFrontmatter splits "---\n<yaml>\n---\n<body>" content. Content
// without a front-matter block yields empty metadata and the raw body.
func parseFrontmatter(content string) (frontmatter, string, error) {
	var meta frontmatter

	if !strings.HasPrefix(content, "---") {
		return meta, content, nil
	}
	rest := strings.TrimPrefix(content, "---")
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n---")
	if end < 0 {
		return meta, content, nil
	}

	header := rest[:end]
	body := rest[end+len("\n---"):]
	body = strings.TrimLeft(body, "\r\n")

	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return frontmatter{}, "", errors.Wrapf(err, "invalid skill front-matter")
	}
	return meta, body, nil
}

// buildToolMap extracts "pattern" from "Bash(pattern)" allowed-tools
// declarations and maps each pattern back to skill names.
func (idx *Index) buildToolMap() {
	idx.toolMap = make(map[string][]string)
	for _, name := range idx.Names() {
		skill := idx.skills[name]
		pattern := extractBashPattern(skill.AllowedTools)
		if pattern == "" {
			continue
		}
		idx.toolMap[pattern] = append(idx.toolMap[pattern], name)
	}
}

func extractBashPattern(allowedTools string) string {
	s := strings.TrimSpace(allowedTools)
	if !strings.HasPrefix(s, "Bash(") || !strings.HasSuffix(s, ")") {
		return ""
	}
	return s[len("Bash(") : len(s)-1]
}

// Get returns a skill by name.
func (idx *Index) Get(name string) (*Skill, bool) {
	s, ok := idx.skills[name]
	return s, ok
}

// Names returns all skill names in sorted order.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.skills))
	for name := range idx.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded skills.
func (idx *Index) Len() int {
	return len(idx.skills)
}

// SkillsForTool returns the names of skills whose allowed-tool pattern
// equals the given pattern (e.g. "playwright-cli:*").
func (idx *Index) SkillsForTool(pattern string) []string {
	return idx.toolMap[pattern]
}

// SkillsForCommand matches a shell command word against the registered
// patterns, so "playwright-cli open" finds skills declaring
// "Bash(playwright-cli:*)".
func (idx *Index) SkillsForCommand(command string) []string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	// Patterns use ':' to separate the command from its subcommand
	// wildcard; the command itself is matched with glob semantics.
	probe := fields[0]
	if len(fields) > 1 {
		probe += ":" + fields[1]
	}

	var names []string
	for pattern, skillNames := range idx.toolMap {
		match, err := doublestar.Match(pattern, probe)
		if err != nil || !match {
			// Also accept a bare command match against "cmd:*" patterns.
			if cmd, _, found := strings.Cut(pattern, ":"); !found || cmd != fields[0] {
				continue
			}
		}
		names = append(names, skillNames...)
	}
	sort.Strings(names)
	return names
}
