package viewer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Compression selects how payloads are compressed on the Redis channel.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionLZ4  Compression = "lz4"
)

var (
	// ErrEmptySnapshot is returned for a payload without states.
	ErrEmptySnapshot = errors.New("snapshot has no states")
	// ErrUnexpectedStatus is returned by Client for a non-success response.
	ErrUnexpectedStatus = errors.New("unexpected viewer response")
)

// lz4Magic starts every LZ4 frame.
var lz4Magic = []byte{0x04, 0x22, 0x4d, 0x18}

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

// Encode marshals a snapshot to JSON.
func Encode(infos []StateInfo) ([]byte, error) {
	if len(infos) == 0 {
		return nil, ErrEmptySnapshot
	}

	data, err := json.Marshal(infos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return data, nil
}

// Compress compresses an encoded snapshot.
func Compress(payload []byte, compression Compression) ([]byte, error) {
	if compression != CompressionLZ4 {
		return payload, nil
	}

	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)

	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode parses a snapshot encoded by Encode, optionally LZ4 compressed.
func Decode(payload []byte) ([]StateInfo, error) {
	if bytes.HasPrefix(payload, lz4Magic) {
		data, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}

		payload = data
	}

	var infos []StateInfo

	err := json.Unmarshal(payload, &infos)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if len(infos) == 0 {
		return nil, ErrEmptySnapshot
	}

	return infos, nil
}
