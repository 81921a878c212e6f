package format

import (
	"fmt"
	"strconv"
	"strings"
)

// Size suffixes, powers of 1024.
const (
	KiB = 1 << 10
	MiB = 1 << 20
	GiB = 1 << 30
)

// ParseSize parses a byte count as written in profiles and traces.
//
// Accepted forms:
//
//	4096      decimal
//	0x1000    hex (any strconv base prefix)
//	64K 1M 2G binary multiples, optional trailing "B" or "iB"
//	1_000     digit separators
func ParseSize(s string) (uintptr, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if t == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadSize)
	}

	mult := uint64(1)
	if !strings.HasPrefix(t, "0X") {
		t = strings.TrimSuffix(strings.TrimSuffix(t, "IB"), "B")
		switch {
		case strings.HasSuffix(t, "K"):
			mult = KiB
		case strings.HasSuffix(t, "M"):
			mult = MiB
		case strings.HasSuffix(t, "G"):
			mult = GiB
		}
		if mult != 1 {
			t = t[:len(t)-1]
		}
	}

	n, err := strconv.ParseUint(t, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	if n > uint64(^uintptr(0))/mult {
		return 0, fmt.Errorf("%w: %q overflows", ErrBadSize, s)
	}
	return uintptr(n * mult), nil
}

// FormatSize renders n using the largest binary suffix that divides it
// exactly, so FormatSize(ParseSize(x)) round-trips.
func FormatSize(n uintptr) string {
	switch {
	case n != 0 && n%GiB == 0:
		return strconv.FormatUint(uint64(n/GiB), 10) + "G"
	case n != 0 && n%MiB == 0:
		return strconv.FormatUint(uint64(n/MiB), 10) + "M"
	case n != 0 && n%KiB == 0:
		return strconv.FormatUint(uint64(n/KiB), 10) + "K"
	default:
		return strconv.FormatUint(uint64(n), 10)
	}
}
