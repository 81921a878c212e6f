// Package trace reads and writes allocation traces: line-oriented scripts of
// allocator operations that can be replayed against any allocator.
//
// Example:
//
//	# boot sequence
//	alloc  a 128
//	alloc  b 4K 64
//	pages  p 4 0x4000
//	free   a
//	grow   64K
//	check
//	freepages p
package trace

import (
	"fmt"
	"strings"

	"github.com/joshuapare/kalloc/internal/format"
)

// Kind identifies a trace operation.
type Kind uint8

const (
	OpAlloc Kind = iota + 1
	OpFree
	OpPages
	OpFreePages
	OpGrow
	OpCheck
)

var kindNames = map[Kind]string{
	OpAlloc:     KeywordAlloc,
	OpFree:      KeywordFree,
	OpPages:     KeywordPages,
	OpFreePages: KeywordFreePages,
	OpGrow:      KeywordGrow,
	OpCheck:     KeywordCheck,
}

// String returns the trace keyword for k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Op is one trace line.
type Op struct {
	Kind Kind
	Line int // 1-based source line, 0 for generated ops

	ID    string  // alloc, free, pages, freepages
	Size  uintptr // alloc bytes, grow bytes
	Count uintptr // pages
	Align uintptr // alloc, pages; 0 means the default
}

// String renders op as a trace line.
func (op Op) String() string {
	var b strings.Builder
	b.WriteString(op.Kind.String())
	switch op.Kind {
	case OpAlloc:
		fmt.Fprintf(&b, " %s %s", op.ID, format.FormatSize(op.Size))
	case OpPages:
		fmt.Fprintf(&b, " %s %d", op.ID, op.Count)
	case OpFree, OpFreePages:
		fmt.Fprintf(&b, " %s", op.ID)
	case OpGrow:
		fmt.Fprintf(&b, " %s", format.FormatSize(op.Size))
	}
	if (op.Kind == OpAlloc || op.Kind == OpPages) && op.Align != 0 {
		fmt.Fprintf(&b, " %s", format.FormatSize(op.Align))
	}
	return b.String()
}
