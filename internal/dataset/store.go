package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rshinytools/cortex-filter/internal/logging"
)

// ErrUnknownDataset is returned when a store cannot resolve a dataset name.
var ErrUnknownDataset = errors.New("unknown dataset")

// Registry is an in-memory dataset store. Names resolve case-insensitively
// and are reported in their registered form.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
	names  map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*Table),
		names:  make(map[string]string),
	}
}

// Register adds or replaces a dataset under the given name.
func (r *Registry) Register(name string, t *Table) {
	key := strings.ToUpper(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[key] = t
	r.names[key] = name
}

// Dataset returns the named dataset.
func (r *Registry) Dataset(name string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}
	return t, nil
}

// Names returns the registered dataset names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for _, name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// datasetExtensions are the file suffixes a DirStore resolves, in preference
// order when a name matches more than one file.
var datasetExtensions = []string{".parquet", ".csv", ".csv.gz"}

// DirStore resolves dataset names against the files of one directory:
// ADSL resolves to adsl.parquet, ADSL.csv, adsl.csv.gz and so on,
// case-insensitively. Each file is loaded once and kept in memory.
type DirStore struct {
	dir string
	log *logging.Logger

	mu     sync.Mutex
	index  map[string]string // upper name -> path, built on first use
	loaded map[string]*Table
}

// NewDirStore creates a DirStore over the given directory. The directory is
// not scanned until the first lookup.
func NewDirStore(dir string) *DirStore {
	return &DirStore{
		dir:    dir,
		log:    logging.NewLogger("dirstore"),
		loaded: make(map[string]*Table),
	}
}

// Dataset resolves and loads the named dataset.
func (s *DirStore) Dataset(name string) (*Table, error) {
	key := strings.ToUpper(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.loaded[key]; ok {
		return t, nil
	}

	if err := s.buildIndex(); err != nil {
		return nil, err
	}

	path, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s (in %s)", ErrUnknownDataset, name, s.dir)
	}

	t, err := loadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", name, err)
	}

	s.log.Debug("dataset loaded", "name", key, "path", path, "rows", t.NumRows(), "cols", t.NumCols())
	s.loaded[key] = t
	return t, nil
}

// Names returns the dataset names resolvable in the directory, sorted.
func (s *DirStore) Names() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buildIndex(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(s.index))
	for name := range s.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Invalidate drops every loaded table and the file index, forcing reloads.
// Callers that clear a subquery cache after swapping files pair it with this.
func (s *DirStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
	s.loaded = make(map[string]*Table)
}

// buildIndex scans the directory once, mapping uppercased base names to
// their files. Caller holds the mutex.
func (s *DirStore) buildIndex() error {
	if s.index != nil {
		return nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read dataset directory: %w", err)
	}

	s.index = make(map[string]string)
	for _, ext := range datasetExtensions {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			fname := entry.Name()
			lower := strings.ToLower(fname)
			if !strings.HasSuffix(lower, ext) {
				continue
			}
			base := strings.ToUpper(fname[:len(fname)-len(ext)])
			// Earlier extensions win; first file wins within an extension.
			if _, exists := s.index[base]; !exists {
				s.index[base] = filepath.Join(s.dir, fname)
			}
		}
	}

	return nil
}

// loadFile picks the loader from the file extension.
func loadFile(path string) (*Table, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".parquet"):
		return LoadParquet(path)
	case strings.HasSuffix(lower, ".csv"), strings.HasSuffix(lower, ".csv.gz"):
		return LoadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported dataset file: %s", path)
	}
}
