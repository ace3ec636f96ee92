package relay

// Theme maps message kinds to ANSI color indices (0-15) so the terminal's
// own palette decides the actual colors.
type Theme struct {
	User      int // User message accent
	Assistant int // Assistant message accent
	Error     int // Error messages
	Streaming int // Open stream indicator
	Muted     int // Status bar, placeholders
	CodeBg    int // Code block background
	Accent    int // Headings, links
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		User:      4,
		Assistant: 2,
		Error:     1,
		Streaming: 3,
		Muted:     8,
		CodeBg:    0,
		Accent:    5,
	}
}
