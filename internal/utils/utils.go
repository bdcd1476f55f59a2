package utils

import (
	"fmt"
	"hash/crc32"

	"github.com/oklog/ulid/v2"
)

// CalculateHash generates a CRC32 hash of the data, quoted for use as a
// Braid version
func CalculateHash(data []byte) string {
	table := crc32.MakeTable(crc32.IEEE)
	return fmt.Sprintf("\"%08x\"", crc32.Checksum(data, table))
}

// GenerateRandomID generates a sortable unique ID for subscriptions
func GenerateRandomID() string {
	return ulid.Make().String()
}
