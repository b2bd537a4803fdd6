// Package artifact frames persisted models as
// magic (4) | version (1) | crc32 of payload (4) | zstd(gob(value)).
package artifact

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const headerLen = 9

// ErrCorrupt is wrapped by every decode failure caused by the file content.
var ErrCorrupt = errors.New("corrupt artifact")

// Format identifies one kind of artifact.
type Format struct {
	Magic   [4]byte
	Version byte
}

// Encode returns the framed bytes of v.
func (f Format) Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	defer enc.Close()
	payload := enc.EncodeAll(buf.Bytes(), nil)

	out := make([]byte, headerLen, headerLen+len(payload))
	copy(out, f.Magic[:])
	out[4] = f.Version
	binary.BigEndian.PutUint32(out[5:], crc32.ChecksumIEEE(payload))
	return append(out, payload...), nil
}

// Decode checks the header and checksum of data and decodes it into v.
func (f Format) Decode(data []byte, v interface{}) error {
	if len(data) < headerLen || !bytes.Equal(data[:4], f.Magic[:]) {
		return fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if data[4] != f.Version {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[4])
	}
	payload := data[headerLen:]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(data[5:headerLen]) {
		return fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(payload, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("%w: gob decode: %v", ErrCorrupt, err)
	}
	return nil
}

// WriteFile encodes v and replaces path atomically: the bytes go to a sibling
// temp file that is synced and renamed over path. It returns the file size.
func (f Format) WriteFile(path string, v interface{}) (n int, err error) {
	data, err := f.Encode(v)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return 0, err
	}
	if err = tmp.Sync(); err != nil {
		return 0, err
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return 0, err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return 0, err
	}
	return len(data), nil
}

// ReadFile reads path and decodes it into v.
func (f Format) ReadFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return f.Decode(data, v)
}
