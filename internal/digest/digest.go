// Package digest computes streaming SHA-256 hashes of files and byte
// buffers. No retries: callers decide how to handle I/O failures.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

const chunkSize = 1 << 20 // 1 MiB

// Digest reads path in fixed-size chunks and returns its hex-encoded
// SHA-256 digest and size in bytes.
func Digest(path string) (hexDigest string, sizeBytes int64, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return "", 0, pipelineerr.IO("digest_open_failed", "failed to open file for digest", openErr)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", 0, pipelineerr.IO("digest_read_failed", "failed reading file for digest", readErr)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), total, nil
}

// Bytes returns the hex-encoded SHA-256 digest of an in-memory buffer.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the file at path hashes to expectedHex.
func Verify(path, expectedHex string) (bool, error) {
	got, _, err := Digest(path)
	if err != nil {
		return false, err
	}
	return got == expectedHex, nil
}

// Size returns the size in bytes of the file at path, without hashing.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, pipelineerr.IO("digest_stat_failed", "failed to stat file", err)
	}
	return info.Size(), nil
}
