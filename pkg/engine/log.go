package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/docdir/docdir/pkg/domain"
)

type recordOp string

const (
	opInsert recordOp = "insert"
	opUpdate recordOp = "update"
	opRemove recordOp = "remove"
)

// logRecord is a single line of a collection's append-only log file.
// Checksum covers the record with the crc field zeroed.
type logRecord struct {
	Op       recordOp        `json:"op"`
	ID       string          `json:"id"`
	Doc      domain.Document `json:"doc,omitempty"`
	Set      domain.Document `json:"set,omitempty"`
	Checksum uint32          `json:"crc"`
}

func recordChecksum(rec logRecord) uint32 {
	rec.Checksum = 0
	data, err := json.Marshal(rec)
	if err != nil {
		return 0
	}
	return crc32.ChecksumIEEE(data)
}

// encodeRecord serializes a record as one newline-terminated JSON line,
// stamping its checksum.
func encodeRecord(rec logRecord) ([]byte, error) {
	rec.Checksum = recordChecksum(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log record: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeRecord parses and checksum-verifies one log line. Verification
// runs over the raw line with the crc digits zeroed, not over a
// re-marshal of the parsed record: numbers outside float64's exact
// integer range do not round-trip through JSON byte-identically, and a
// re-marshal check would discard such records as corrupt.
func decodeRecord(line []byte) (*logRecord, error) {
	var rec logRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal log record: %w", err)
	}
	sum, err := checksumLine(line)
	if err != nil {
		return nil, err
	}
	if rec.Checksum != sum {
		return nil, fmt.Errorf("checksum verification failed for record %s", rec.ID)
	}
	return &rec, nil
}

var crcToken = []byte(`"crc":`)

// checksumLine recomputes a raw line's checksum by replacing the stored
// crc digits with a literal 0, reproducing the exact bytes the writer
// checksummed. The crc field is marshalled last, so the final "crc" key
// in the line is the record's own.
func checksumLine(line []byte) (uint32, error) {
	i := bytes.LastIndex(line, crcToken)
	if i < 0 {
		return 0, fmt.Errorf("log record has no crc field")
	}
	start := i + len(crcToken)
	end := start
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	if end == start {
		return 0, fmt.Errorf("log record has a malformed crc field")
	}

	zeroed := make([]byte, 0, len(line))
	zeroed = append(zeroed, line[:start]...)
	zeroed = append(zeroed, '0')
	zeroed = append(zeroed, line[end:]...)
	return crc32.ChecksumIEEE(zeroed), nil
}
