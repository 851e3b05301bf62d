package db

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/docdir/docdir/pkg/domain"
)

// snapshotData is the payload of a backup file: every live collection's
// documents keyed by collection name and document id.
type snapshotData struct {
	Collections map[string]map[string]domain.Document `msgpack:"collections"`
}

// Backup writes every open collection's documents to a single compressed
// snapshot file. Registry metadata is not copied; a restore re-derives it
// through metadata refresh.
func (d *DB) Backup(ctx context.Context, path string) error {
	data := snapshotData{Collections: make(map[string]map[string]domain.Document)}

	for _, name := range d.ListCollections() {
		h, exists := d.manager.Lookup(name)
		if !exists {
			continue
		}
		docs, err := h.Find(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to read collection %s: %w", name, err)
		}
		byID := make(map[string]domain.Document, len(docs))
		for _, doc := range docs {
			byID[doc.ID()] = doc
		}
		data.Collections[name] = byID
	}

	msgpackData, err := msgpack.Marshal(&data)
	if err != nil {
		return fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(msgpackData)))
	var hashTable [1 << 16]int
	n, err := lz4.CompressBlock(msgpackData, compressed, hashTable[:])
	if err != nil {
		return fmt.Errorf("failed to compress snapshot: %w", err)
	}

	var flags uint8
	payload := compressed[:n]
	if n == 0 {
		// Incompressible payload; store it raw
		flags = snapshotFlagUncompressed
		payload = msgpackData
	}

	var buf bytes.Buffer
	if err := writeSnapshotHeader(&buf, flags); err != nil {
		return fmt.Errorf("failed to write snapshot header: %w", err)
	}
	if _, err := buf.Write(payload); err != nil {
		return fmt.Errorf("failed to write snapshot data: %w", err)
	}

	// Write to a temporary file first, then rename (atomic operation)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot file: %w", err)
	}
	return nil
}

// Restore loads a snapshot file and re-inserts its documents into the
// matching collections, then refreshes their metadata. Documents keep
// their ids; an existing document with the same id is overwritten.
func (d *DB) Restore(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	header, err := readSnapshotHeader(file)
	if err != nil {
		return err
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read snapshot data: %w", err)
	}

	decompressed := payload
	if header.Flags&snapshotFlagUncompressed == 0 {
		decompressed, err = decompressBlock(payload)
		if err != nil {
			return fmt.Errorf("failed to decompress snapshot: %w", err)
		}
	}

	var data snapshotData
	if err := msgpack.Unmarshal(decompressed, &data); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	names := make([]string, 0, len(data.Collections))
	for name, docs := range data.Collections {
		h := d.Collection(name)
		for _, doc := range docs {
			if err := h.Insert(doc); err != nil {
				return fmt.Errorf("failed to restore into collection %s: %w", name, err)
			}
		}
		names = append(names, name)
	}

	if err := d.agg.RefreshAll(ctx, names); err != nil {
		return fmt.Errorf("failed to refresh restored collections: %w", err)
	}
	return nil
}

// decompressBlock decompresses an lz4 block, growing the destination
// buffer until the payload fits.
func decompressBlock(compressed []byte) ([]byte, error) {
	size := len(compressed) * 4
	for {
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(compressed, dst)
		if err == nil {
			return dst[:n], nil
		}
		if size >= len(compressed)*256 {
			return nil, err
		}
		size *= 4
	}
}
