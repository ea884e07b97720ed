// Package checksum computes the content digest used as deduplication key.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5 returns the hexadecimal MD5 digest of the payload.
// It is computed on the full payload, before any chunking, so the digest does
// not depend on the configured chunk size.
func MD5(payload []byte) string {
	digest := md5.Sum(payload)
	return hex.EncodeToString(digest[:])
}
