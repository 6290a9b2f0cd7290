package settings

import (
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"indexgateway/pkg/logger"
)

// record is the gorm model backing persisted settings overrides — an
// alternative to the JSON file for hosts that already keep an
// embedded sqlite database and would rather not maintain a second
// config file on disk.
type record struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

// Store persists Settings overrides in a sqlite database, mirroring
// the teacher database manager's sync.Once singleton and WAL-pragma
// tuning, scoped down to this module's one small table.
type Store struct {
	mu sync.RWMutex
	db *gorm.DB
}

var (
	storeInstance *Store
	storeOnce     sync.Once
)

// GetStore returns the process-wide Store singleton.
func GetStore() *Store {
	storeOnce.Do(func() {
		storeInstance = &Store{}
	})
	return storeInstance
}

// ResetStore clears the singleton. Test-only.
func ResetStore() {
	storeOnce = sync.Once{}
	storeInstance = nil
}

// Open opens (or creates) the sqlite database under baseDir.
func (s *Store) Open(baseDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dbPath := filepath.Join(baseDir, "settings.sqlite")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if execErr := db.Exec(pragma).Error; execErr != nil {
			logger.Warn("settings store: pragma %q failed: %v", pragma, execErr)
		}
	}

	if err := db.AutoMigrate(&record{}); err != nil {
		return err
	}

	s.db = db
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get returns the persisted value for key, and whether it was found.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return "", false
	}

	var rec record
	if err := db.First(&rec, "key = ?", key).Error; err != nil {
		return "", false
	}
	return rec.Value, true
}

// Set persists value under key, upserting any existing row.
func (s *Store) Set(key, value string) error {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil
	}
	return db.Save(&record{Key: key, Value: value}).Error
}

// ApplyOverrides loads persisted index-directory and default-language
// overrides (if present) onto s. A persisted directory also clears the
// in-memory flag, via SetDir.
func (st *Store) ApplyOverrides(s *Settings) {
	if dir, ok := st.Get("index_directory"); ok && dir != "" {
		s.SetDir(dir)
	}
	if lang, ok := st.Get("default_language"); ok && lang != "" {
		s.mu.Lock()
		s.DefaultLanguage = lang
		s.mu.Unlock()
	}
}
