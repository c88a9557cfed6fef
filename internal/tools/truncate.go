package tools

import "fmt"

// Truncate bounds unbounded tool output to limit characters. Output at or
// under the limit is returned unmodified; anything over is cut and suffixed
// with a marker stating the original total length, so the model can refine
// its query instead of re-requesting the whole thing.
func Truncate(output string, limit int) string {
	if len(output) <= limit {
		return output
	}
	return output[:limit] + fmt.Sprintf("\n... (Output truncated. Total length: %d chars.)", len(output))
}
