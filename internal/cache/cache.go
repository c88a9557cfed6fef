// Package cache places ephemeral prompt-cache checkpoint markers on the
// conversation. Placement is recomputed from scratch every turn, so the
// markers form a moving window that tracks the tail of a growing
// conversation within the provider's breakpoint budget.
package cache

import (
	"slices"
	"strings"

	"drover/internal/chat"
)

const (
	// checkpointInterval is the message stride between candidate
	// breakpoints.
	checkpointInterval = 8

	// maxHistoryCheckpoints is the provider breakpoint budget minus the
	// slots reserved for the system prompt and the tool definitions.
	maxHistoryCheckpoints = 2
)

// Supported reports whether the model class honors explicit cache
// breakpoints. Apply is a no-op for everything else.
func Supported(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "anthropic") || strings.Contains(m, "claude")
}

// Apply recomputes checkpoint markers on msgs in place. It mutates marker
// flags only, never the structure of the conversation.
func Apply(msgs chat.Conversation, model string) {
	if !Supported(model) {
		return
	}

	// The system message always carries exactly one marker, on its last
	// content segment.
	for i := range msgs {
		if msgs[i].Role != chat.RoleSystem {
			continue
		}
		if !msgs[i].HasCacheMarker() {
			msgs[i].EnsureParts()
			if len(msgs[i].Parts) > 0 {
				msgs[i].Parts[len(msgs[i].Parts)-1].Cache = true
			}
		}
		break
	}

	checkpoints := historyCheckpoints(msgs)

	for i := range msgs {
		if msgs[i].Role == chat.RoleSystem {
			continue
		}
		isCheckpoint := checkpoints[i]
		hasMarker := msgs[i].HasCacheMarker()

		switch {
		case hasMarker && !isCheckpoint:
			for j := range msgs[i].Parts {
				msgs[i].Parts[j].Cache = false
			}
		case !hasMarker && isCheckpoint:
			msgs[i].EnsureParts()
			if len(msgs[i].Parts) > 0 {
				msgs[i].Parts[len(msgs[i].Parts)-1].Cache = true
			}
		}
	}
}

// historyCheckpoints picks the checkpoint indices: every Nth non-system
// message, snapped to the nearest message with content, keeping only the
// most recent few.
func historyCheckpoints(msgs chat.Conversation) map[int]bool {
	var candidates []int
	for i, m := range msgs {
		if m.Role != chat.RoleSystem && i > 0 && i%checkpointInterval == 0 {
			candidates = append(candidates, i)
		}
	}

	var snapped []int
	for _, idx := range candidates {
		for _, offset := range []int{0, -1, 1, -2, 2} {
			j := idx + offset
			if j <= 0 || j >= len(msgs) {
				continue
			}
			if !msgs[j].HasContent() || slices.Contains(snapped, j) {
				continue
			}
			snapped = append(snapped, j)
			break
		}
	}

	if len(snapped) > maxHistoryCheckpoints {
		snapped = snapped[len(snapped)-maxHistoryCheckpoints:]
	}

	out := make(map[int]bool, len(snapped))
	for _, idx := range snapped {
		out[idx] = true
	}
	return out
}
