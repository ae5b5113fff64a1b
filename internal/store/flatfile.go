package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Flat-slot file geometry.
//
// The file is a fixed header followed by slotCount fixed-size slots.
// Every Put rewrites exactly one slot and syncs, so a power loss during a
// write can lose at most the record being written.
const (
	// flatMagic identifies a latchkey slot file, version 1.
	flatMagic = "LKS1"

	// headerSize is magic (4) + slot count (2) + reserved (2).
	headerSize = 8

	// maxIDLen bounds the stored identifier (uppercase hex UIDs are
	// typically 8-20 characters).
	maxIDLen = 20

	// maxDataLen bounds the record payload.
	maxDataLen = 8

	// slotSize is used flag (1) + id length (1) + id (20) + data length (1)
	// + data (8), padded to a power of two.
	slotSize = 32

	// filePerm is the permission mode for the slot file.
	filePerm = 0600

	// dirPerm is the permission mode for the slot file's directory.
	dirPerm = 0750
)

// Flatfile is a Store backed by a fixed-slot binary file.
//
// It models wear-limited raw media: no journal, no compaction, each record
// confined to its own slot. Intended for deployments without SQLite; the
// slot count is fixed at creation and should match the registry capacity.
//
// Not safe for concurrent use; the control loop is the only writer.
type Flatfile struct {
	f         *os.File
	slotCount int

	// index maps record id to slot number for occupied slots.
	index map[string]int

	// free lists unoccupied slot numbers, lowest first.
	free []int
}

// OpenFlatfile opens or creates a slot file at path with the given slot count.
//
// An existing file must match the magic and slot count exactly; geometry
// changes require a new file. A new file is created zeroed and synced.
//
// Returns:
//   - *Flatfile: Ready store with the slot index loaded
//   - error: ErrCorrupt on validation failure, or the underlying I/O error
func OpenFlatfile(path string, slotCount int) (*Flatfile, error) {
	if slotCount < 1 || slotCount > 0xFFFF {
		return nil, fmt.Errorf("%w: slot count %d out of range", ErrCorrupt, slotCount)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, filePerm)
	if err != nil {
		return nil, fmt.Errorf("opening slot file: %w", err)
	}

	fs := &Flatfile{
		f:         f,
		slotCount: slotCount,
		index:     make(map[string]int),
	}

	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("stat slot file: %w", err)
	}

	if info.Size() == 0 {
		if err := fs.format(); err != nil {
			f.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, err
		}
		for i := 0; i < slotCount; i++ {
			fs.free = append(fs.free, i)
		}
		return fs, nil
	}

	if err := fs.load(); err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	return fs, nil
}

// format writes a fresh header and zeroed slot region.
func (s *Flatfile) format() error {
	buf := make([]byte, headerSize+s.slotCount*slotSize)
	copy(buf, flatMagic)
	buf[4] = byte(s.slotCount >> 8)
	buf[5] = byte(s.slotCount)

	if _, err := s.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: formatting slot file: %w", ErrWriteFailed, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing slot file: %w", ErrWriteFailed, err)
	}
	return nil
}

// load validates the header and rebuilds the slot index from disk.
func (s *Flatfile) load() error {
	header := make([]byte, headerSize)
	if _, err := s.f.ReadAt(header, 0); err != nil {
		return fmt.Errorf("%w: reading header: %w", ErrCorrupt, err)
	}
	if string(header[:4]) != flatMagic {
		return fmt.Errorf("%w: bad magic %q", ErrCorrupt, header[:4])
	}
	if got := int(header[4])<<8 | int(header[5]); got != s.slotCount {
		return fmt.Errorf("%w: slot count %d on disk, %d configured", ErrCorrupt, got, s.slotCount)
	}

	slot := make([]byte, slotSize)
	for i := 0; i < s.slotCount; i++ {
		if _, err := s.f.ReadAt(slot, slotOffset(i)); err != nil {
			return fmt.Errorf("%w: reading slot %d: %w", ErrCorrupt, i, err)
		}
		if slot[0] == 0 {
			s.free = append(s.free, i)
			continue
		}
		idLen := int(slot[1])
		dataLen := int(slot[2+maxIDLen])
		if idLen == 0 || idLen > maxIDLen || dataLen > maxDataLen {
			// A torn write left this slot unusable. Reclaim it; the
			// record it held is lost but neighbours are intact.
			s.free = append(s.free, i)
			continue
		}
		id := string(slot[2 : 2+idLen])
		s.index[id] = i
	}
	return nil
}

// slotOffset returns the file offset of slot i.
func slotOffset(i int) int64 {
	return int64(headerSize + i*slotSize)
}

// Put durably writes data under id, replacing any previous value.
func (s *Flatfile) Put(_ context.Context, id string, data []byte) error {
	if len(id) == 0 || len(id) > maxIDLen {
		return fmt.Errorf("%w: id length %d out of range", ErrWriteFailed, len(id))
	}
	if len(data) > maxDataLen {
		return fmt.Errorf("%w: data length %d exceeds %d", ErrWriteFailed, len(data), maxDataLen)
	}

	slot, exists := s.index[id]
	if !exists {
		if len(s.free) == 0 {
			return fmt.Errorf("%w: all %d slots occupied", ErrFull, s.slotCount)
		}
		slot = s.free[0]
	}

	buf := make([]byte, slotSize)
	buf[0] = 1
	buf[1] = byte(len(id))
	copy(buf[2:], id)
	buf[2+maxIDLen] = byte(len(data))
	copy(buf[3+maxIDLen:], data)

	if _, err := s.f.WriteAt(buf, slotOffset(slot)); err != nil {
		return fmt.Errorf("%w: writing slot %d: %w", ErrWriteFailed, slot, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing slot %d: %w", ErrWriteFailed, slot, err)
	}

	if !exists {
		s.free = s.free[1:]
		s.index[id] = slot
	}
	return nil
}

// Get returns the data stored under id.
func (s *Flatfile) Get(_ context.Context, id string) ([]byte, error) {
	slot, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}

	buf := make([]byte, slotSize)
	if _, err := s.f.ReadAt(buf, slotOffset(slot)); err != nil {
		return nil, fmt.Errorf("reading slot %d: %w", slot, err)
	}
	dataLen := int(buf[2+maxIDLen])
	data := make([]byte, dataLen)
	copy(data, buf[3+maxIDLen:3+maxIDLen+dataLen])
	return data, nil
}

// Delete removes the record stored under id by clearing its used flag.
func (s *Flatfile) Delete(_ context.Context, id string) error {
	slot, ok := s.index[id]
	if !ok {
		return ErrNotFound
	}

	buf := make([]byte, slotSize)
	if _, err := s.f.WriteAt(buf, slotOffset(slot)); err != nil {
		return fmt.Errorf("%w: clearing slot %d: %w", ErrWriteFailed, slot, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing slot %d: %w", ErrWriteFailed, slot, err)
	}

	delete(s.index, id)
	s.free = append(s.free, slot)
	return nil
}

// Enumerate returns all occupied records in slot order.
func (s *Flatfile) Enumerate(ctx context.Context) ([]Record, error) {
	records := make([]Record, 0, len(s.index))
	for id := range s.index {
		data, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{ID: id, Data: data})
	}
	return records, nil
}

// Close closes the underlying file.
func (s *Flatfile) Close() error {
	if s.f == nil {
		return nil
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("closing slot file: %w", err)
	}
	s.f = nil
	return nil
}
