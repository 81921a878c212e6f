// Package format defines the in-memory layout shared by the allocators: the
// free-block header, word and page sizes, and the alignment helpers built on
// them. Nothing in this package allocates; it only describes bytes.
package format

const (
	// WordSize is the size of one header word. Headers are encoded as
	// 64-bit words regardless of the host pointer width.
	WordSize = 8

	// WordAlignmentMask is used to round sizes up to a whole word.
	WordAlignmentMask = WordSize - 1

	// HeaderSize is the size of a block header: a size word followed by a
	// next-block word.
	// Layout (little-endian):
	//   0x00  size  (usable bytes after the header)
	//   0x08  next  (address of the next free block, 0 terminates)
	HeaderSize = 2 * WordSize

	// BlockSizeOffset is the offset of the size word inside a header.
	BlockSizeOffset = 0x00

	// BlockNextOffset is the offset of the next word inside a header.
	BlockNextOffset = 0x08

	// NilBlock terminates a free list. Address 0 is never mapped.
	NilBlock = 0

	// DefaultPageSize is the page size used when none is configured.
	DefaultPageSize = 0x1000

	// DefaultPageAlignmentMask is DefaultPageSize - 1.
	DefaultPageAlignmentMask = DefaultPageSize - 1
)
