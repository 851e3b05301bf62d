package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"time"
)

// Compact rewrites the log file with one insert record per live document,
// dropping everything superseded. The rewrite goes to a temporary file
// which replaces the log atomically via rename.
func (s *Store) Compact(ctx context.Context) error {
	if err := s.WaitReady(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked()
}

func (s *Store) compactLocked() error {
	if s.state != StateReady {
		return fmt.Errorf("cannot compact %s: store not ready", s.path)
	}

	start := time.Now()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tempPath := s.path + ".tmp"
	temp, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	for _, id := range ids {
		data, err := encodeRecord(logRecord{Op: opInsert, ID: id, Doc: s.docs[id]})
		if err != nil {
			temp.Close()
			os.Remove(tempPath)
			return err
		}
		if _, err := temp.Write(data); err != nil {
			temp.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to write temp file: %w", err)
		}
	}

	if err := temp.Sync(); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace log file: %w", err)
	}

	// Reopen the append handle against the new file.
	if s.file != nil {
		s.file.Close()
	}
	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.file = nil
		return fmt.Errorf("failed to reopen log file after compaction: %w", err)
	}
	s.file = file
	s.superseded = 0

	log.Printf("INFO: Compacted %s: %d documents in %v", s.path, len(ids), time.Since(start))
	return nil
}

// compactWorker periodically compacts once enough records are superseded.
func (s *Store) compactWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.compactInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.maybeCompact()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Store) maybeCompact() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady || s.superseded < s.compactThreshold {
		return
	}
	if err := s.compactLocked(); err != nil {
		log.Printf("ERROR: Background compaction of %s failed: %v", s.path, err)
	}
}
