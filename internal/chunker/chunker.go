// Package chunker splits payloads into bounded-size chunks suitable for a
// store with a per-value size limit, and reassembles them.
package chunker

import "github.com/pkg/errors"

// ErrIntegrity is returned when a chunk sequence cannot rebuild its payload.
var ErrIntegrity = errors.New("inconsistent chunk sequence")

// Split cuts the payload in chunks of at most size bytes, in order.
// The last chunk may be shorter. An empty payload yields no chunk.
// The chunks alias the payload's backing array.
func Split(payload []byte, size int) [][]byte {
	chunks := make([][]byte, 0, (len(payload)+size-1)/size)

	for start := 0; start < len(payload); start += size {
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}

	return chunks
}

// Join concatenates the chunks in index order into a payload of exactly size
// bytes. It fails with ErrIntegrity if a chunk is missing or if the
// reassembled payload does not have the expected size.
func Join(chunks [][]byte, size int64) ([]byte, error) {
	payload := make([]byte, 0, size)

	for index, chunk := range chunks {
		if chunk == nil {
			return nil, errors.Wrapf(ErrIntegrity, "missing chunk %d", index)
		}
		payload = append(payload, chunk...)
	}

	if int64(len(payload)) != size {
		return nil, errors.Wrapf(ErrIntegrity, "expected %d bytes, got %d", size, len(payload))
	}
	return payload, nil
}

// Count returns the number of chunks of at most size bytes needed to hold a
// payload of n bytes.
func Count(n int64, size int) int {
	return int((n + int64(size) - 1) / int64(size))
}
