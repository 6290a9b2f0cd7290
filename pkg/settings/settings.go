package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	_ "github.com/blevesearch/bleve/v2/analysis/lang/de"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/fr"
)

// cultureAnalyzers maps a culture tag to the analyzer name registered
// by bleve's per-language analysis packages. Only the languages the
// host actually imports (via the blank imports above) are usable;
// anything else falls back to DefaultAnalyzer.
var cultureAnalyzers = map[string]string{
	"en": "en",
	"en-US": "en",
	"en-GB": "en",
	"de": "de",
	"de-DE": "de",
	"fr": "fr",
	"fr-FR": "fr",
}

// Settings resolves the on-disk/in-memory index location and exposes
// analyzer lookup by culture — the Settings & Directory Provider. It
// mirrors the teacher config package's RWMutex-guarded, JSON-file-
// backed, mergeWithDefaults pattern, re-scoped to the indexing
// gateway's own concerns instead of AI/RAG/chunking ones.
type Settings struct {
	mu         sync.RWMutex
	configPath string

	IndexDirectory  string `json:"index_directory"`
	InMemoryIndex   bool   `json:"in_memory_index"`
	DefaultLanguage string `json:"default_language"`
}

var (
	globalSettings *Settings
	once           sync.Once
)

// New returns a Settings instance populated with defaults.
func New() *Settings {
	s := &Settings{}
	s.setDefaults()
	return s
}

// Get returns the process-wide Settings singleton, constructing it
// with defaults on first use.
func Get() *Settings {
	once.Do(func() {
		globalSettings = New()
	})
	return globalSettings
}

// Reset clears the singleton. Test-only.
func Reset() {
	once = sync.Once{}
	globalSettings = nil
}

func (s *Settings) setDefaults() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.IndexDirectory = defaultIndexDir()
	s.InMemoryIndex = false
	s.DefaultLanguage = "en"
}

func defaultIndexDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "indexgateway-data", "index")
	}
	return filepath.Join(dir, "indexgateway", "index")
}

// LoadFromFile loads settings from a JSON file, keeping defaults for
// any field the file leaves unset. A missing file is not an error.
func (s *Settings) LoadFromFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var loaded Settings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	s.mergeWithDefaultsLocked(&loaded)
	return nil
}

func (s *Settings) mergeWithDefaultsLocked(loaded *Settings) {
	if loaded.IndexDirectory != "" {
		s.IndexDirectory = loaded.IndexDirectory
	}
	s.InMemoryIndex = loaded.InMemoryIndex
	if loaded.DefaultLanguage != "" {
		s.DefaultLanguage = loaded.DefaultLanguage
	}
}

// SaveToFile persists the current settings to a JSON file.
func (s *Settings) SaveToFile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Save persists to the path last used by LoadFromFile.
func (s *Settings) Save() error {
	s.mu.RLock()
	path := s.configPath
	s.mu.RUnlock()
	if path == "" {
		return errors.New("no settings path set")
	}
	return s.SaveToFile(path)
}

// Dir returns the configured index directory, or "" when the index is
// in-memory.
func (s *Settings) Dir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.InMemoryIndex {
		return ""
	}
	return s.IndexDirectory
}

// SetDir overrides the on-disk index directory and clears the
// in-memory flag.
func (s *Settings) SetDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IndexDirectory = dir
	s.InMemoryIndex = false
}

// SetInMemory switches the provider to an in-memory index.
func (s *Settings) SetInMemory(inMemory bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryIndex = inMemory
}

// AnalyzerForCulture resolves a culture tag to a registered bleve
// analyzer name, falling back to the default analyzer for unknown or
// empty cultures.
func (s *Settings) AnalyzerForCulture(culture string) string {
	if name, ok := cultureAnalyzers[culture]; ok {
		return name
	}
	return s.DefaultAnalyzer()
}

// DefaultAnalyzer resolves the configured default language to a
// registered analyzer name, falling back to bleve's standard analyzer.
func (s *Settings) DefaultAnalyzer() string {
	s.mu.RLock()
	lang := s.DefaultLanguage
	s.mu.RUnlock()

	if name, ok := cultureAnalyzers[lang]; ok {
		return name
	}
	return "standard"
}

// IndexMapping builds a bleve.IndexMapping using DefaultAnalyzer as
// the mapping-wide default. Every document is analyzed with this
// default: gateway.IndexHandle resolves the per-operation culture but
// does not apply it.
func (s *Settings) IndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = s.DefaultAnalyzer()
	return im
}
