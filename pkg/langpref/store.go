// Package langpref keeps each chat user's preferred reply language and
// persists the mapping to a flat JSON file after every change.
package langpref

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tinyland-inc/aobridge/pkg/logger"
)

const (
	English = "en"
	Turkish = "tr"

	// Default is the language used when neither the store nor the event
	// supplies one.
	Default = English
)

// ErrUnsupported is returned by Set for language codes other than en/tr.
var ErrUnsupported = errors.New("unsupported language")

// Supported reports whether code is a language the bridge can reply in.
func Supported(code string) bool {
	return code == English || code == Turkish
}

// DisplayName returns the English name of a supported language code.
func DisplayName(code string) string {
	switch code {
	case English:
		return "English"
	case Turkish:
		return "Turkish"
	default:
		return code
	}
}

// Store is safe for concurrent use. A zero path keeps preferences in memory.
type Store struct {
	path string
	// writeMu orders writers so the file always ends with the newest map.
	writeMu sync.Mutex
	mu      sync.RWMutex
	prefs   map[string]string
}

// NewStore returns an empty store that persists to path.
func NewStore(path string) *Store {
	return &Store{path: path, prefs: make(map[string]string)}
}

// Load reads preferences from path. A missing or empty file yields an empty
// store; an unreadable or corrupt file is logged and also yields an empty
// store so startup never fails on it.
func Load(path string) *Store {
	s := NewStore(path)
	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.ErrorCF("langpref", "Error loading user language preferences", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		}
		return s
	}
	if len(data) == 0 {
		return s
	}

	var prefs map[string]string
	if err := json.Unmarshal(data, &prefs); err != nil {
		logger.ErrorCF("langpref", "Error loading user language preferences", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return s
	}
	for user, code := range prefs {
		s.prefs[user] = code
	}
	logger.InfoCF("langpref", "Language preferences loaded", map[string]any{
		"path":  path,
		"users": len(s.prefs),
	})
	return s
}

// Get returns the stored language for userID.
func (s *Store) Get(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.prefs[userID]
	return code, ok
}

// Resolve returns the stored language for userID, else fallback when it is
// supported, else Default.
func (s *Store) Resolve(userID, fallback string) string {
	if code, ok := s.Get(userID); ok && Supported(code) {
		return code
	}
	if Supported(fallback) {
		return fallback
	}
	return Default
}

// Set stores code for userID and persists the whole map. The in-memory value
// is kept even if persisting fails; the error is returned for logging.
func (s *Store) Set(userID, code string) error {
	if !Supported(code) {
		return fmt.Errorf("%w: %q", ErrUnsupported, code)
	}

	return s.update(func(prefs map[string]string) { prefs[userID] = code })
}

// Delete removes the preference for userID and persists the map.
func (s *Store) Delete(userID string) error {
	return s.update(func(prefs map[string]string) { delete(prefs, userID) })
}

func (s *Store) update(change func(map[string]string)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	change(s.prefs)
	snapshot := make(map[string]string, len(s.prefs))
	for k, v := range s.prefs {
		snapshot[k] = v
	}
	s.mu.Unlock()

	return s.save(snapshot)
}

// Users returns the user IDs with a stored preference, sorted.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]string, 0, len(s.prefs))
	for u := range s.prefs {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func (s *Store) save(prefs map[string]string) error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".userLanguage-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing preferences: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing preferences: %w", err)
	}
	return nil
}
