package engine

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docdir/docdir/pkg/domain"
)

// State describes where a store is in its lifecycle.
type State int32

const (
	StateLoading State = iota
	StateReady
	StateFailed
	StateClosed
)

// Store is an embedded document store bound to one append-only log file.
//
// Open returns the store immediately and loads the file in the background.
// Inserts submitted while loading are queued and flushed in submission
// order once the load completes; reads and query-based writes block until
// the store is ready.
type Store struct {
	path string

	mu       sync.Mutex
	state    State
	loadErr  error
	docs     map[string]domain.Document
	pending  []domain.Document
	readyFns []func(error)
	readyCh  chan struct{}
	file     *os.File

	// Count of log records superseded by later ones; drives compaction.
	superseded int

	syncWrites       bool
	compactThreshold int
	compactInterval  time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// Open creates a store for the given log file, creating the file (and its
// parent directory) if absent, and begins loading it asynchronously.
func Open(path string, options ...Option) *Store {
	s := &Store{
		path:             path,
		state:            StateLoading,
		docs:             make(map[string]domain.Document),
		readyCh:          make(chan struct{}),
		compactThreshold: 1024,
		stopChan:         make(chan struct{}),
	}

	for _, option := range options {
		option(s)
	}

	s.wg.Add(1)
	go s.load()

	if s.compactInterval > 0 {
		s.wg.Add(1)
		go s.compactWorker()
	}

	return s
}

// Path returns the store's on-disk log file path.
func (s *Store) Path() string {
	return s.path
}

// State returns the store's current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WaitReady blocks until the background load has finished and returns the
// load error, if any.
func (s *Store) WaitReady(ctx context.Context) error {
	select {
	case <-s.readyCh:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnReady registers fn to run when the load completes. If the load has
// already completed, fn is invoked synchronously.
func (s *Store) OnReady(fn func(error)) {
	s.mu.Lock()
	if s.state == StateLoading {
		s.readyFns = append(s.readyFns, fn)
		s.mu.Unlock()
		return
	}
	err := s.loadErr
	s.mu.Unlock()
	fn(err)
}

// Insert adds a document, assigning a fresh _id when it has none. While
// the store is loading the insert is queued and applied on readiness;
// the assigned _id is visible to the caller immediately either way.
func (s *Store) Insert(doc domain.Document) error {
	if doc.ID() == "" {
		doc["_id"] = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateLoading:
		s.pending = append(s.pending, doc.Clone())
		return nil
	case StateFailed:
		return s.loadErr
	case StateClosed:
		return domain.ErrClosed
	}

	return s.applyInsert(doc.Clone())
}

// Find returns every document matching the equality query, sorted by _id.
// A nil query matches all documents.
func (s *Store) Find(ctx context.Context, query domain.Document) ([]domain.Document, error) {
	if err := s.WaitReady(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, domain.ErrClosed
	}

	var results []domain.Document
	for _, doc := range s.docs {
		if MatchesQuery(doc, query) {
			results = append(results, doc.Clone())
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID() < results[j].ID()
	})
	return results, nil
}

// Update applies the fields of set to every document matching query and
// returns the first updated document. With upsert enabled and no match, a
// new document combining query and set is inserted and returned.
func (s *Store) Update(ctx context.Context, query, set domain.Document, upsert bool) (domain.Document, error) {
	if err := s.WaitReady(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, domain.ErrClosed
	}

	var matched []string
	for id, doc := range s.docs {
		if MatchesQuery(doc, query) {
			matched = append(matched, id)
		}
	}
	sort.Strings(matched)

	if len(matched) == 0 {
		if !upsert {
			return nil, nil
		}
		doc := query.Clone()
		if doc == nil {
			doc = domain.Document{}
		}
		for k, v := range set {
			doc[k] = v
		}
		if doc.ID() == "" {
			doc["_id"] = uuid.NewString()
		}
		if err := s.applyInsert(doc); err != nil {
			return nil, err
		}
		return doc.Clone(), nil
	}

	var first domain.Document
	for _, id := range matched {
		doc := s.docs[id]
		for k, v := range set {
			if k != "_id" {
				doc[k] = v
			}
		}
		s.superseded++
		rec := logRecord{Op: opUpdate, ID: id, Set: set.Clone()}
		if err := s.appendRecord(rec); err != nil {
			return nil, err
		}
		if first == nil {
			first = doc.Clone()
		}
	}
	return first, nil
}

// Remove deletes every document matching query and returns how many were
// removed.
func (s *Store) Remove(ctx context.Context, query domain.Document) (int, error) {
	if err := s.WaitReady(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return 0, domain.ErrClosed
	}

	var matched []string
	for id, doc := range s.docs {
		if MatchesQuery(doc, query) {
			matched = append(matched, id)
		}
	}
	sort.Strings(matched)

	for _, id := range matched {
		delete(s.docs, id)
		s.superseded++
		if err := s.appendRecord(logRecord{Op: opRemove, ID: id}); err != nil {
			return 0, err
		}
	}
	return len(matched), nil
}

// Count returns the number of live documents.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := s.WaitReady(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return 0, domain.ErrClosed
	}
	return int64(len(s.docs)), nil
}

// Close stops background workers and closes the log file. Safe to call
// more than once.
func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	file := s.file
	s.file = nil
	s.mu.Unlock()

	if file != nil {
		return file.Close()
	}
	return nil
}

// load opens the log file, replays it, and flushes queued inserts.
func (s *Store) load() {
	defer s.wg.Done()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		s.finishLoad(fmt.Errorf("failed to create data directory: %w", err))
		return
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		s.finishLoad(fmt.Errorf("failed to open log file %s: %w", s.path, err))
		return
	}

	if err := s.replay(file); err != nil {
		file.Close()
		s.finishLoad(err)
		return
	}

	s.mu.Lock()
	s.file = file
	s.mu.Unlock()
	s.finishLoad(nil)
}

// replay applies every valid log record in order. Duplicate inserts for
// the same id overwrite (last record wins); updates and removes for
// unknown ids are skipped, as are records that fail to parse or verify
// (a torn tail from a crash mid-append decodes as one bad record).
func (s *Store) replay(file *os.File) error {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	docs := make(map[string]domain.Document)
	superseded := 0
	lines := 0

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++

		rec, err := decodeRecord(line)
		if err != nil {
			log.Printf("WARN: %s: skipping record %d: %v", s.path, lines, err)
			continue
		}

		switch rec.Op {
		case opInsert:
			if _, exists := docs[rec.ID]; exists {
				superseded++
			}
			doc := rec.Doc
			if doc == nil {
				doc = domain.Document{}
			}
			doc["_id"] = rec.ID
			docs[rec.ID] = doc
		case opUpdate:
			if doc, exists := docs[rec.ID]; exists {
				for k, v := range rec.Set {
					if k != "_id" {
						doc[k] = v
					}
				}
				superseded++
			}
		case opRemove:
			if _, exists := docs[rec.ID]; exists {
				delete(docs, rec.ID)
				superseded++
			}
		default:
			log.Printf("WARN: %s: skipping unknown log op %q", s.path, rec.Op)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file %s: %w", s.path, err)
	}

	// A torn tail may lack its newline; restore line framing so appended
	// records start on a fresh line.
	if info, err := file.Stat(); err == nil && info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := file.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			if _, err := file.Write([]byte("\n")); err != nil {
				return fmt.Errorf("failed to reframe log file %s: %w", s.path, err)
			}
		}
	}

	s.mu.Lock()
	s.docs = docs
	s.superseded = superseded
	s.mu.Unlock()

	if lines > 0 {
		log.Printf("INFO: Loaded %s: %d documents from %d records (%d superseded)",
			s.path, len(docs), lines, superseded)
	}
	return nil
}

// finishLoad transitions out of StateLoading, flushes queued inserts in
// submission order, and fires readiness callbacks.
func (s *Store) finishLoad(loadErr error) {
	s.mu.Lock()

	if loadErr != nil {
		s.state = StateFailed
		s.loadErr = loadErr
		s.pending = nil
	} else {
		s.state = StateReady
		for _, doc := range s.pending {
			if err := s.applyInsert(doc); err != nil {
				log.Printf("ERROR: %s: failed to flush queued insert: %v", s.path, err)
			}
		}
		s.pending = nil
	}

	fns := s.readyFns
	s.readyFns = nil
	close(s.readyCh)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(loadErr)
	}
}

// applyInsert stores the document and appends its log record. Caller must
// hold s.mu with the store in StateReady.
func (s *Store) applyInsert(doc domain.Document) error {
	id := doc.ID()
	if _, exists := s.docs[id]; exists {
		s.superseded++
	}
	s.docs[id] = doc
	return s.appendRecord(logRecord{Op: opInsert, ID: id, Doc: doc})
}

// appendRecord writes one record to the log file. Caller must hold s.mu.
func (s *Store) appendRecord(rec logRecord) error {
	if s.file == nil {
		return fmt.Errorf("log file %s not open", s.path)
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("failed to append to %s: %w", s.path, err)
	}
	if s.syncWrites {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync %s: %w", s.path, err)
		}
	}
	return nil
}
