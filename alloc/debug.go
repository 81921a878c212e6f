package alloc

import "github.com/joshuapare/kalloc/internal/logger"

// debugLog emits an allocator debug record. The enabled check keeps the
// variadic arguments off the heap when debug logging is off.
func debugLog(msg string, args ...any) {
	if logger.DebugEnabled() {
		logger.L.Debug(msg, args...)
	}
}
