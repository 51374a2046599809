package index

import "sync"

// Lazy guards process-wide one-time construction of the index handle.
// Concurrent first callers race to a single Load; a failed load does not
// latch, so the next request retries (the artifacts may appear once the
// ingest command has run). A successful load is kept for the process
// lifetime.
type Lazy struct {
	indexPath string
	metaPath  string

	mu    sync.RWMutex
	store *Store
}

// NewLazy creates a lazy loader for the given artifact paths.
func NewLazy(indexPath, metaPath string) *Lazy {
	return &Lazy{indexPath: indexPath, metaPath: metaPath}
}

// Get returns the loaded index, loading it on first use.
func (l *Lazy) Get() (*Store, error) {
	l.mu.RLock()
	s := l.store
	l.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		return l.store, nil
	}

	s, err := Load(l.indexPath, l.metaPath)
	if err != nil {
		return nil, err
	}
	l.store = s
	return s, nil
}

// Loaded reports whether the index has been constructed yet.
func (l *Lazy) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store != nil
}
