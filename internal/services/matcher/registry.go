package matcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entry maps one canonical entity name to an asset key.
type Entry struct {
	Name  string `json:"name"`
	Asset string `json:"asset"`
}

// AssetRegistry is a read-only, ordered entity-to-asset mapping. Order
// matters: the first matching entry wins.
type AssetRegistry struct {
	entries []Entry
	index   map[string]int
	files   []string
}

// NewAssetRegistry builds a registry from entries in order. Later duplicates
// of a name are ignored.
func NewAssetRegistry(entries ...Entry) *AssetRegistry {
	r := &AssetRegistry{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if _, dup := r.index[e.Name]; dup {
			continue
		}
		r.index[e.Name] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r
}

// WithFiles returns a copy of r that also knows about unmapped asset files,
// which the slug strategy can match by file stem.
func (r *AssetRegistry) WithFiles(files ...string) *AssetRegistry {
	cp := &AssetRegistry{
		entries: r.entries,
		index:   r.index,
		files:   append(append([]string(nil), r.files...), files...),
	}
	return cp
}

// Len returns the number of entries.
func (r *AssetRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns a copy of the entries in order.
func (r *AssetRegistry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Files returns the extra asset files.
func (r *AssetRegistry) Files() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.files...)
}

// Lookup returns the asset registered under exactly name.
func (r *AssetRegistry) Lookup(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.entries[i].Asset, true
}

// registryFile is the on-disk layout:
//
//	assets:
//	  Acme Corp: acme.png
//	files:
//	  - harvard-university.svg
type registryFile struct {
	Assets yaml.Node `yaml:"assets"`
	Files  []string  `yaml:"files"`
}

// ParseAssetRegistry decodes a YAML registry, keeping the document order
// of the assets mapping.
func ParseAssetRegistry(data []byte) (*AssetRegistry, error) {
	var doc registryFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse asset registry: %w", err)
	}

	var entries []Entry
	switch doc.Assets.Kind {
	case 0:
	case yaml.MappingNode:
		content := doc.Assets.Content
		for i := 0; i+1 < len(content); i += 2 {
			k, v := content[i], content[i+1]
			if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("asset registry line %d: entries must be name: asset", k.Line)
			}
			entries = append(entries, Entry{Name: k.Value, Asset: v.Value})
		}
	default:
		return nil, fmt.Errorf("asset registry line %d: assets must be a mapping", doc.Assets.Line)
	}

	return NewAssetRegistry(entries...).WithFiles(doc.Files...), nil
}

// LoadAssetRegistry reads a YAML registry file. When dir is not empty, the
// files in it are added as unmapped assets.
func LoadAssetRegistry(path, dir string) (*AssetRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	reg, err := ParseAssetRegistry(data)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return reg, nil
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read asset directory: %w", err)
	}
	var files []string
	for _, e := range dirEntries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return reg.WithFiles(files...), nil
}

func stem(file string) string {
	return file[:len(file)-len(filepath.Ext(file))]
}
