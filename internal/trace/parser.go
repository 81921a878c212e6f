package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/joshuapare/kalloc/internal/format"
)

// ErrSyntax indicates a malformed trace line.
var ErrSyntax = errors.New("trace: syntax error")

// maxLine bounds a single trace line.
const maxLine = 64 * 1024

// ParseFile reads the trace at path.
func ParseFile(path string) ([]Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a trace. Blank lines and comments are skipped; every other
// line must be one operation.
//
// Input is UTF-8 unless it starts with a byte order mark; UTF-16 traces
// saved by Windows editors carry one.
func Parse(r io.Reader) ([]Op, error) {
	r = transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)

	var ops []Op
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), CR)
		if i := strings.Index(line, CommentPrefix); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		op, err := parseLine(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		op.Line = lineNo
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ops, nil
}

func parseLine(fields []string) (Op, error) {
	keyword, args := strings.ToLower(fields[0]), fields[1:]
	switch keyword {
	case KeywordAlloc:
		return parseSized(OpAlloc, args)
	case KeywordPages:
		return parseSized(OpPages, args)
	case KeywordFree, KeywordFreePages:
		if len(args) != 1 {
			return Op{}, fmt.Errorf("%w: %s takes <id>", ErrSyntax, keyword)
		}
		kind := OpFree
		if keyword == KeywordFreePages {
			kind = OpFreePages
		}
		return Op{Kind: kind, ID: args[0]}, nil
	case KeywordGrow:
		if len(args) != 1 {
			return Op{}, fmt.Errorf("%w: grow takes <size>", ErrSyntax)
		}
		size, err := parseNonZero("size", args[0])
		if err != nil {
			return Op{}, err
		}
		return Op{Kind: OpGrow, Size: size}, nil
	case KeywordCheck:
		if len(args) != 0 {
			return Op{}, fmt.Errorf("%w: check takes no arguments", ErrSyntax)
		}
		return Op{Kind: OpCheck}, nil
	default:
		return Op{}, fmt.Errorf("%w: unknown operation %q", ErrSyntax, fields[0])
	}
}

// parseSized parses "<id> <amount> [align]" for alloc and pages.
func parseSized(kind Kind, args []string) (Op, error) {
	if len(args) < 2 || len(args) > 3 {
		return Op{}, fmt.Errorf("%w: %s takes <id> <amount> [align]", ErrSyntax, kind)
	}
	op := Op{Kind: kind, ID: args[0]}

	amount, err := format.ParseSize(args[1])
	if err != nil {
		return Op{}, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	if kind == OpAlloc {
		op.Size = amount
	} else {
		op.Count = amount
	}

	if len(args) == 3 {
		if op.Align, err = parseNonZero("align", args[2]); err != nil {
			return Op{}, err
		}
	}
	return op, nil
}

func parseNonZero(what, s string) (uintptr, error) {
	n, err := format.ParseSize(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s must be non-zero", ErrSyntax, what)
	}
	return n, nil
}

// Write emits ops in trace syntax, one per line.
func Write(w io.Writer, ops []Op) error {
	bw := bufio.NewWriter(w)
	for _, op := range ops {
		if _, err := bw.WriteString(op.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
