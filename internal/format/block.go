package format

// Header is the decoded form of a block header.
type Header struct {
	Size uintptr // usable bytes following the header
	Next uintptr // address of the next free block, NilBlock terminates
}

// DecodeHeader decodes a header from the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}
	return Header{
		Size: uintptr(ReadU64(b, BlockSizeOffset)),
		Next: uintptr(ReadU64(b, BlockNextOffset)),
	}, nil
}

// EncodeHeader writes h into the first HeaderSize bytes of b.
func EncodeHeader(b []byte, h Header) error {
	if len(b) < HeaderSize {
		return ErrTruncated
	}
	PutU64(b, BlockSizeOffset, uint64(h.Size))
	PutU64(b, BlockNextOffset, uint64(h.Next))
	return nil
}
