package batch

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// crc32c computes the CRC-32C (Castagnoli) checksum used for record-batch
// validation (spec.md §4.3). No third-party implementation in the pack
// beats the standard library's table-driven crc32.Checksum here — this is
// the one place protocol/batch reaches for stdlib on purpose.
func crc32c(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}
