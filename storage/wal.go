package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// WAL file header: [12-byte magic "COLEMAN_WAL\0"][uint32 LE version]
const (
	walMagic          = "COLEMAN_WAL\x00"
	walHeaderSize     = 16 // 12 (magic) + 4 (version)
	walCurrentVersion = 1
)

// WAL entry type tags (first byte of the record data).
const (
	entryCreateTable byte = 0x01
	entryAddRecord   byte = 0x02
)

// WAL manages an append-only write-ahead log file.
//
// Record format: [uint64 seq][uint32 dataLen][data…][uint32 crc32]
// All integers little-endian; the CRC covers data only. Sequence
// numbers are contiguous from 1 and reset to 0 on truncation.
type WAL struct {
	mu    sync.Mutex
	file  *os.File
	seq   uint64
	size  int64
	fsync *atomic.Bool // nil means always sync
}

// OpenWAL opens (or creates) the WAL file at path. A new file gets a
// header; an existing file has its magic and version verified and its
// records scanned to recover the last committed sequence number. A
// partial record at the tail (crash mid-append) is trimmed.
func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &WAL{file: f}

	if info.Size() == 0 {
		if err := w.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		if _, err := f.Seek(walHeaderSize, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
		w.size = walHeaderSize
		return w, nil
	}

	if err := w.verifyHeader(); err != nil {
		f.Close()
		return nil, err
	}

	lastSeq, end, err := w.scanRecords()
	if err != nil {
		f.Close()
		return nil, err
	}
	if end < info.Size() {
		// Partial tail record from a crash mid-append.
		if err := f.Truncate(end); err != nil {
			f.Close()
			return nil, fmt.Errorf("trim partial WAL tail: %w", err)
		}
	}
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	w.seq = lastSeq
	w.size = end
	return w, nil
}

// SetFsyncFlag wires the WAL to a shared fsync toggle. When the flag
// is false, appends skip the sync call (faster, at the cost of the
// durability contract).
func (w *WAL) SetFsyncFlag(flag *atomic.Bool) {
	w.mu.Lock()
	w.fsync = flag
	w.mu.Unlock()
}

// writeHeader writes the magic + version header at offset 0.
func (w *WAL) writeHeader() error {
	var hdr [walHeaderSize]byte
	copy(hdr[:12], walMagic)
	binary.LittleEndian.PutUint32(hdr[12:], walCurrentVersion)
	if _, err := w.file.WriteAt(hdr[:], 0); err != nil {
		return err
	}
	return w.file.Sync()
}

// verifyHeader checks the magic and version at offset 0.
func (w *WAL) verifyHeader() error {
	var hdr [walHeaderSize]byte
	if _, err := w.file.ReadAt(hdr[:], 0); err != nil {
		return fmt.Errorf("read WAL header: %w", err)
	}
	if string(hdr[:12]) != walMagic {
		return ErrInvalidWALMagic
	}
	version := binary.LittleEndian.Uint32(hdr[12:])
	if version != walCurrentVersion {
		return fmt.Errorf("%w: %d (supported: %d)", ErrInvalidWALVersion, version, walCurrentVersion)
	}
	return nil
}

// scanRecords walks the record frames after the header and returns the
// last sequence number and the offset just past the last complete
// record. Frame contents are not CRC-checked here; replay does that.
func (w *WAL) scanRecords() (lastSeq uint64, end int64, err error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, 0, err
	}
	fileSize := info.Size()

	end = walHeaderSize
	var frame [12]byte // seq(8) + dataLen(4)
	for {
		if _, err := w.file.ReadAt(frame[:], end); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return lastSeq, end, nil
			}
			return 0, 0, fmt.Errorf("scan WAL: %w", err)
		}
		seq := binary.LittleEndian.Uint64(frame[:8])
		dataLen := binary.LittleEndian.Uint32(frame[8:])
		next := end + 12 + int64(dataLen) + 4
		if next > fileSize {
			return lastSeq, end, nil // partial tail
		}
		lastSeq = seq
		end = next
	}
}

// Close closes the WAL file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Size returns the current file size in bytes.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// LastSeq returns the sequence number of the last appended record.
func (w *WAL) LastSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// appendEntry frames data with the next sequence number and a CRC,
// writes it, and syncs. A successful return means the record is on
// durable storage (unless the fsync toggle is off).
func (w *WAL) appendEntry(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.seq + 1
	record := make([]byte, 0, 12+len(data)+4)
	record = binary.LittleEndian.AppendUint64(record, seq)
	record = binary.LittleEndian.AppendUint32(record, uint32(len(data)))
	record = append(record, data...)
	record = binary.LittleEndian.AppendUint32(record, crc32.ChecksumIEEE(data))

	if _, err := w.file.Write(record); err != nil {
		return err
	}
	if w.fsync == nil || w.fsync.Load() {
		if err := w.file.Sync(); err != nil {
			return err
		}
	}
	w.seq = seq
	w.size += int64(len(record))
	return nil
}

// AppendCreateTable logs a create-table entry.
// Data: [0x01][name:str][colCount:u32] per col: [name:str][type:u8]
func (w *WAL) AppendCreateTable(name string, schema *Schema) error {
	buf := []byte{entryCreateTable}
	buf = encodeString(buf, name)
	buf = encodeSchema(buf, schema)
	return w.appendEntry(buf)
}

// AppendAddRecord logs an add-record entry.
// Data: [0x02][table:str][valueCount:u32] per value: [tag:u8][payload]
func (w *WAL) AppendAddRecord(table string, values []Value) error {
	buf := []byte{entryAddRecord}
	buf = encodeString(buf, table)
	buf = encodeValues(buf, values)
	return w.appendEntry(buf)
}

// Truncate resets the file to just the header and the sequence counter
// to 0. Called after a successful snapshot.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(walHeaderSize); err != nil {
		return err
	}
	if _, err := w.file.Seek(walHeaderSize, io.SeekStart); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.seq = 0
	w.size = walHeaderSize
	return nil
}

// ReplayHandler receives decoded WAL entries during replay.
type ReplayHandler interface {
	OnCreateTable(name string, schema *Schema) error
	OnAddRecord(table string, values []Value) error
}

// Replay reads every record after the header, validates its CRC, and
// delivers the decoded entry to handler in log order. A premature EOF
// is the tail of the log and ends replay cleanly; a CRC mismatch or an
// unknown entry tag is an error.
func (w *WAL) Replay(handler ReplayHandler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(walHeaderSize, io.SeekStart); err != nil {
		return err
	}
	defer w.file.Seek(0, io.SeekEnd)

	var frame [12]byte
	for {
		if _, err := io.ReadFull(w.file, frame[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil // clean end
			}
			return fmt.Errorf("read record frame: %w", err)
		}
		dataLen := binary.LittleEndian.Uint32(frame[8:])

		body := make([]byte, int(dataLen)+4)
		if _, err := io.ReadFull(w.file, body); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil // partial tail record
			}
			return fmt.Errorf("read record body: %w", err)
		}

		data := body[:dataLen]
		storedCRC := binary.LittleEndian.Uint32(body[dataLen:])
		if crc32.ChecksumIEEE(data) != storedCRC {
			seq := binary.LittleEndian.Uint64(frame[:8])
			return fmt.Errorf("%w: record seq %d", ErrWALCorruption, seq)
		}

		if err := replayEntry(data, handler); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
	}
}

func replayEntry(data []byte, h ReplayHandler) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty record", ErrInvalidEntryType)
	}
	switch data[0] {
	case entryCreateTable:
		return replayCreateTable(data[1:], h)
	case entryAddRecord:
		return replayAddRecord(data[1:], h)
	default:
		return fmt.Errorf("%w: %#02x", ErrInvalidEntryType, data[0])
	}
}

func replayCreateTable(payload []byte, h ReplayHandler) error {
	name, rest, err := decodeString(payload)
	if err != nil {
		return err
	}
	schema, _, err := decodeSchema(rest)
	if err != nil {
		return err
	}
	return h.OnCreateTable(name, schema)
}

func replayAddRecord(payload []byte, h ReplayHandler) error {
	table, rest, err := decodeString(payload)
	if err != nil {
		return err
	}
	values, _, err := decodeValues(rest)
	if err != nil {
		return err
	}
	return h.OnAddRecord(table, values)
}
