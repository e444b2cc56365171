package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/steveyegge/plangraph/internal/types"
)

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		// Errors only come from invalid options
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return decoder
}

// Digest returns the hex blake3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodeBundle packs named documents into one compressed blob and returns it
// with the digest of the uncompressed payload.
func EncodeBundle(docs map[string]json.RawMessage) ([]byte, string, error) {
	payload, err := json.Marshal(docs)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal bundle: %w", err)
	}
	return getEncoder().EncodeAll(payload, nil), Digest(payload), nil
}

// DecodeBundle unpacks a blob written by EncodeBundle. When digest is
// non-empty the payload must match it.
func DecodeBundle(data []byte, digest string) (map[string]json.RawMessage, error) {
	payload, err := getDecoder().DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress bundle: %v: %w", err, types.ErrCorrupt)
	}
	if digest != "" && Digest(payload) != digest {
		return nil, fmt.Errorf("bundle digest mismatch: %w", types.ErrCorrupt)
	}
	var docs map[string]json.RawMessage
	if err := json.Unmarshal(payload, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse bundle: %v: %w", err, types.ErrCorrupt)
	}
	return docs, nil
}
