// Package autoload resolves PHP class/function/constant names to candidate
// file paths using a project's composer.json autoload configuration:
// PSR-4, PSR-0, classmap, and files entries, from both "autoload" and
// "autoload-dev".
package autoload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// psr4Rule is one "prefix => directories" entry. Composer allows the JSON
// value to be either a single string or an array of strings; Go has no
// native untagged union for that, so psr4Value below sniffs the JSON shape
// by hand.
type psr4Rule struct {
	prefix string
	dirs   []string
}

// NamespaceMap is the resolved autoload configuration for one composer
// project, with every path already joined onto the project's base directory.
type NamespaceMap struct {
	psr4      []psr4Rule
	psr0      []psr4Rule
	classmap  map[string]string // configured classmap path -> itself (absolute)
	files     []string
	baseDir   string
}

// psr4Value unmarshals either a JSON string or a JSON array of strings.
type psr4Value struct {
	values []string
}

func (v *psr4Value) UnmarshalJSON(data []byte) error {
	data = trimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] == '[' {
		var arr []string
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		v.values = arr
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	v.values = []string{single}
	return nil
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isJSONSpace(b[start]) {
		start++
	}
	for end > start && isJSONSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (v psr4Value) toPaths(baseDir string) []string {
	if len(v.values) == 0 {
		return []string{baseDir}
	}
	out := make([]string, 0, len(v.values))
	for _, p := range v.values {
		if p == "" {
			out = append(out, baseDir)
			continue
		}
		out = append(out, filepath.Join(baseDir, p))
	}
	return out
}

type autoloadSection struct {
	PSR4     map[string]psr4Value `json:"psr-4"`
	PSR0     map[string]psr4Value `json:"psr-0"`
	Classmap []string             `json:"classmap"`
	Files    []string             `json:"files"`
}

type composerJSON struct {
	Autoload    autoloadSection `json:"autoload"`
	AutoloadDev autoloadSection `json:"autoload-dev"`
}

// Load reads and parses composer.json at path, returning the combined
// NamespaceMap (autoload plus autoload-dev, matching the reference
// implementation's behavior of merging both).
func Load(path string) (*NamespaceMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read composer.json: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse parses composer.json content already in memory; baseDir is the
// directory composer.json lives in, onto which every configured path is
// joined.
func Parse(data []byte, baseDir string) (*NamespaceMap, error) {
	var doc composerJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse composer.json: %w", err)
	}

	nm := &NamespaceMap{
		classmap: make(map[string]string),
		baseDir:  baseDir,
	}
	processSection(doc.Autoload, baseDir, nm)
	processSection(doc.AutoloadDev, baseDir, nm)

	sort.Slice(nm.psr4, func(i, j int) bool { return len(nm.psr4[i].prefix) > len(nm.psr4[j].prefix) })
	sort.Slice(nm.psr0, func(i, j int) bool { return len(nm.psr0[i].prefix) > len(nm.psr0[j].prefix) })
	return nm, nil
}

func processSection(section autoloadSection, baseDir string, nm *NamespaceMap) {
	for prefix, value := range section.PSR4 {
		nm.psr4 = append(nm.psr4, psr4Rule{prefix: prefix, dirs: value.toPaths(baseDir)})
	}
	for prefix, value := range section.PSR0 {
		nm.psr0 = append(nm.psr0, psr4Rule{prefix: prefix, dirs: value.toPaths(baseDir)})
	}
	for _, rel := range section.Files {
		nm.files = append(nm.files, filepath.Join(baseDir, rel))
	}
	// classmap entries are directories/files to scan; without a full
	// composer class-scanner this stores the configured roots keyed by
	// themselves so SourceDirectories can still report them.
	for _, rel := range section.Classmap {
		abs := filepath.Join(baseDir, rel)
		nm.classmap[abs] = abs
	}
}

// ResolveClass maps a fully-qualified class name to the file paths where it
// could be declared, trying PSR-4 rules (longest prefix first) then PSR-0.
func (nm *NamespaceMap) ResolveClass(fqn string) []string {
	fqn = strings.TrimPrefix(fqn, "\\")

	var candidates []string
	for _, rule := range nm.psr4 {
		rest, ok := stripNamespacePrefix(fqn, rule.prefix)
		if !ok {
			continue
		}
		relPath := strings.ReplaceAll(rest, "\\", "/") + ".php"
		for _, dir := range rule.dirs {
			candidates = append(candidates, filepath.Join(dir, relPath))
		}
	}
	if len(candidates) > 0 {
		return candidates
	}

	for _, rule := range nm.psr0 {
		// PSR-0 keeps the whole class name (prefix included) in the path.
		if !strings.HasPrefix(fqn, rule.prefix) {
			continue
		}
		rest := strings.ReplaceAll(fqn, "\\", "/")
		rest = strings.ReplaceAll(rest, "_", "/")
		relPath := rest + ".php"
		for _, dir := range rule.dirs {
			candidates = append(candidates, filepath.Join(dir, relPath))
		}
	}
	return candidates
}

// stripNamespacePrefix reports whether fqn begins with prefix (after
// normalizing a trailing backslash on prefix) and returns the remainder.
func stripNamespacePrefix(fqn, prefix string) (string, bool) {
	norm := strings.TrimSuffix(prefix, "\\")
	if norm == "" {
		return fqn, true
	}
	if fqn == norm {
		return "", true
	}
	withSep := norm + "\\"
	if strings.HasPrefix(fqn, withSep) {
		return fqn[len(withSep):], true
	}
	return "", false
}

// SourceDirectories returns every directory this project's autoload config
// points into -- PSR-4/PSR-0 roots plus classmap paths -- for the workspace
// scanner to walk when priming the index.
func (nm *NamespaceMap) SourceDirectories() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(dirs []string) {
		for _, d := range dirs {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	for _, rule := range nm.psr4 {
		add(rule.dirs)
	}
	for _, rule := range nm.psr0 {
		add(rule.dirs)
	}
	for path := range nm.classmap {
		add([]string{path})
	}
	sort.Strings(out)
	return out
}

// Files returns the "files" autoload entries -- paths always loaded
// regardless of namespace, such as global helper function files.
func (nm *NamespaceMap) Files() []string {
	return append([]string(nil), nm.files...)
}

// BaseDir returns the directory composer.json was loaded from.
func (nm *NamespaceMap) BaseDir() string {
	return nm.baseDir
}
