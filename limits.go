package relay

import "unicode/utf8"

// LimitMessages returns the newest part of history that fits the limits.
// At most maxMessages messages are kept; then, walking from the newest,
// messages are kept while their combined text fits maxChars. The message
// that crosses the limit keeps only its leading characters and older ones
// are dropped. Zero disables a limit. history is not modified.
func LimitMessages(history []Payload, maxMessages, maxChars int) []Payload {
	out := history
	if maxMessages > 0 && len(out) > maxMessages {
		out = out[len(out)-maxMessages:]
	}
	if maxChars > 0 {
		total := 0
		for i := len(out) - 1; i >= 0; i-- {
			n := utf8.RuneCountInString(out[i].Text)
			total += n
			if total <= maxChars {
				continue
			}
			keep := n - (total - maxChars)
			rest := out[i+1:]
			if keep <= 0 {
				out = rest
				break
			}
			cut := out[i]
			cut.Text = string([]rune(cut.Text)[:keep])
			out = append([]Payload{cut}, rest...)
			return out
		}
	}
	return append([]Payload(nil), out...)
}
