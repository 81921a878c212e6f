package trace

const (
	// ============================================================================
	// Operation Keywords
	// ============================================================================

	// KeywordAlloc allocates bytes: alloc <id> <size> [align]
	KeywordAlloc = "alloc"

	// KeywordFree frees a byte allocation: free <id>
	KeywordFree = "free"

	// KeywordPages allocates a page run: pages <id> <count> [align]
	KeywordPages = "pages"

	// KeywordFreePages frees a page run: freepages <id>
	KeywordFreePages = "freepages"

	// KeywordGrow adds a freshly mapped region: grow <size>
	KeywordGrow = "grow"

	// KeywordCheck validates allocator invariants: check
	KeywordCheck = "check"

	// ============================================================================
	// Lexical Tokens
	// ============================================================================

	// CommentPrefix starts a comment that runs to the end of the line
	CommentPrefix = "#"

	// CR is stripped from line ends so CRLF traces parse
	CR = "\r"

	// ============================================================================
	// Defaults
	// ============================================================================

	// DefaultAlign is used when an alloc line has no align field
	DefaultAlign = 8
)
