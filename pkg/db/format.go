package db

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic bytes identifying a snapshot file
	snapshotMagic = "DDIR"
	// Current snapshot format version
	snapshotVersion = 1
	// Set when the payload is stored raw: lz4 block compression yields
	// nothing for incompressible (typically tiny) payloads
	snapshotFlagUncompressed = 1 << 0
)

// snapshotHeader is the fixed-size header of a snapshot file.
type snapshotHeader struct {
	Magic    [4]byte // "DDIR"
	Version  uint8   // Format version
	Flags    uint8   // Reserved for future use
	Reserved [2]byte // Reserved for future use
}

func writeSnapshotHeader(w io.Writer, flags uint8) error {
	header := snapshotHeader{
		Magic:   [4]byte{'D', 'D', 'I', 'R'},
		Version: snapshotVersion,
		Flags:   flags,
	}
	return binary.Write(w, binary.LittleEndian, header)
}

func readSnapshotHeader(r io.Reader) (*snapshotHeader, error) {
	var header snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read snapshot header: %w", err)
	}

	if string(header.Magic[:]) != snapshotMagic {
		return nil, fmt.Errorf("invalid snapshot format: expected %s, got %s", snapshotMagic, string(header.Magic[:]))
	}
	if header.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d", header.Version)
	}
	return &header, nil
}
