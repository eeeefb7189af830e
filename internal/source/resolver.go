// Package source locates input files by logical name.
package source

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/sells-group/sits/internal/config"
)

// Logical source names.
const (
	UrbanBlocks     = "urban_blocks"
	RuralLocalities = "rural_localities"
	EconomicUnits   = "economic_units"
	Rivers          = "rivers"
	Elevation       = "elevation"
	UrbanTable      = "urban_table"
	RuralTable      = "rural_table"
)

// Logical lists every logical source in report order.
var Logical = []string{UrbanBlocks, RuralLocalities, EconomicUnits, Rivers, Elevation, UrbanTable, RuralTable}

// Required reports whether a logical source is required for its zone kind.
func Required(logical string) bool {
	switch logical {
	case UrbanBlocks, RuralLocalities, UrbanTable, RuralTable:
		return true
	}
	return false
}

// Resolver maps a logical source name to a file path.
type Resolver interface {
	Resolve(logical string) (string, bool)
}

// PathResolver resolves logical names from explicitly configured paths.
// Entries pointing at missing files do not resolve.
type PathResolver map[string]string

// Resolve implements Resolver.
func (p PathResolver) Resolve(logical string) (string, bool) {
	fp, ok := p[logical]
	if !ok || fp == "" {
		return "", false
	}
	if !isFile(fp) {
		zap.L().Warn("source: configured path does not exist",
			zap.String("source", logical), zap.String("path", fp))
		return "", false
	}
	return fp, true
}

// SearchResolver looks for the candidate file names of a logical source in
// an ordered list of directories under Root, then anywhere below Root. Each
// candidate name is searched fully before the next one is tried. Names may be
// doublestar patterns.
type SearchResolver struct {
	Root  string
	Dirs  []string
	Names map[string][]string
}

// NewSearchResolver creates a SearchResolver.
func NewSearchResolver(root string, dirs []string, names map[string][]string) *SearchResolver {
	if root == "" {
		root = "."
	}
	return &SearchResolver{Root: root, Dirs: dirs, Names: names}
}

// Resolve implements Resolver.
func (s *SearchResolver) Resolve(logical string) (string, bool) {
	for _, name := range s.Names[logical] {
		if fp, ok := s.inDirs(name); ok {
			return fp, true
		}
		if fp, ok := s.recursive(name); ok {
			return fp, true
		}
	}
	return "", false
}

func (s *SearchResolver) inDirs(name string) (string, bool) {
	if hasMeta(name) {
		for _, dir := range s.Dirs {
			matches, err := doublestar.FilepathGlob(filepath.Join(s.Root, dir, name))
			if err != nil {
				continue
			}
			sort.Strings(matches)
			for _, m := range matches {
				if isFile(m) {
					return m, true
				}
			}
		}
		return "", false
	}
	for _, dir := range s.Dirs {
		fp := filepath.Join(s.Root, dir, name)
		if isFile(fp) {
			return fp, true
		}
	}
	return "", false
}

// recursive searches the whole tree below Root, preferring the shallowest
// match and then lexical order.
func (s *SearchResolver) recursive(name string) (string, bool) {
	matches, err := doublestar.Glob(os.DirFS(s.Root), "**/"+name, doublestar.WithFilesOnly())
	if err != nil {
		zap.L().Debug("source: recursive search failed", zap.String("name", name), zap.Error(err))
		return "", false
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool {
		di, dj := strings.Count(matches[i], "/"), strings.Count(matches[j], "/")
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	return filepath.Join(s.Root, filepath.FromSlash(path.Clean(matches[0]))), true
}

// ChainResolver tries each resolver in order; the first hit wins.
type ChainResolver []Resolver

// Resolve implements Resolver.
func (c ChainResolver) Resolve(logical string) (string, bool) {
	for _, r := range c {
		if fp, ok := r.Resolve(logical); ok {
			return fp, true
		}
	}
	return "", false
}

// FromConfig builds the default resolver: explicit paths first, then the
// directory search.
func FromConfig(cfg config.DiscoveryConfig) Resolver {
	names := cfg.Names
	if len(names) == 0 {
		names = config.DefaultNames()
	}
	return ChainResolver{
		PathResolver(cfg.Paths),
		NewSearchResolver(cfg.Root, cfg.Dirs, names),
	}
}

// Resolution is the outcome of resolving one logical source.
type Resolution struct {
	Logical  string
	Path     string
	Found    bool
	Required bool
}

// ResolveAll resolves every logical source.
func ResolveAll(r Resolver) []Resolution {
	out := make([]Resolution, 0, len(Logical))
	for _, name := range Logical {
		fp, ok := r.Resolve(name)
		out = append(out, Resolution{Logical: name, Path: fp, Found: ok, Required: Required(name)})
	}
	return out
}

func hasMeta(name string) bool {
	return strings.ContainsAny(name, "*?[{")
}

func isFile(fp string) bool {
	info, err := os.Stat(fp)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
