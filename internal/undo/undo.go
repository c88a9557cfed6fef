package undo

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"drover/internal/chat"
	"drover/internal/logger"
)

// ErrNothingToUndo is returned by Undo when no turn snapshots remain.
var ErrNothingToUndo = errors.New("nothing to undo")

// snapshot captures the state at the start of a turn. Git-backed
// snapshots store a tree hash; manual ones lazily collect file
// pre-images as tools report changes. A nil pre-image means the file
// did not exist.
type snapshot struct {
	conversation chat.Conversation
	treeHash     string
	files        map[string]*string
}

// Manager keeps a LIFO stack of turn snapshots and restores the
// working directory and conversation when asked to undo. Inside a git
// repository it snapshots the whole tree; elsewhere it falls back to
// tracking only the files tools actually touch.
type Manager struct {
	history      []snapshot
	gitAvailable bool
}

func NewManager() *Manager {
	return &Manager{gitAvailable: insideGitWorkTree()}
}

func insideGitWorkTree() bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	return cmd.Run() == nil
}

// StartTurn records a snapshot before a turn mutates anything. The
// conversation is cloned so later turns cannot alias into it.
func (m *Manager) StartTurn(conv chat.Conversation) {
	snap := snapshot{conversation: conv.Clone(), files: map[string]*string{}}
	if m.gitAvailable {
		if hash, err := gitSnapshot(); err != nil {
			logger.L.Error("git snapshot failed, falling back to manual tracking", "error", err)
		} else {
			snap.treeHash = hash
		}
	}
	m.history = append(m.history, snap)
}

// RecordFileChange captures a file's pre-image before a tool modifies
// it. Only the first report per path within a turn is kept; git-backed
// snapshots already cover the whole tree and ignore it.
func (m *Manager) RecordFileChange(path string) {
	if len(m.history) == 0 {
		return
	}
	current := &m.history[len(m.history)-1]
	if current.treeHash != "" {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	if _, seen := current.files[abs]; seen {
		return
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			current.files[abs] = nil
		}
		return
	}
	content := string(data)
	current.files[abs] = &content
}

// Undo pops the most recent snapshot, restores the filesystem from it
// and returns the conversation as it stood before the turn. Filesystem
// restore failures are logged rather than aborting; the conversation
// is still rolled back.
func (m *Manager) Undo() (chat.Conversation, error) {
	if len(m.history) == 0 {
		return nil, ErrNothingToUndo
	}
	snap := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]

	if snap.treeHash != "" {
		if err := gitRestore(snap.treeHash); err != nil {
			logger.L.Error("git restore failed, working tree may be inconsistent", "error", err)
		}
	} else {
		for path, content := range snap.files {
			if err := restoreFile(path, content); err != nil {
				logger.L.Error("failed to revert file", "path", path, "error", err)
			}
		}
	}
	return snap.conversation, nil
}

// gitSnapshot stages everything, writes the index as a tree object and
// unstages again, leaving only the hash behind.
func gitSnapshot() (string, error) {
	if err := runGit("add", "-A"); err != nil {
		return "", err
	}
	out, err := exec.Command("git", "write-tree").Output()
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(string(out))
	if err := runGit("reset"); err != nil {
		return "", err
	}
	return hash, nil
}

func gitRestore(treeHash string) error {
	if err := runGit("checkout", treeHash, "--", "."); err != nil {
		return err
	}
	if err := runGit("clean", "-fd"); err != nil {
		return err
	}
	return runGit("reset")
}

func runGit(args ...string) error {
	return exec.Command("git", args...).Run()
}

func restoreFile(path string, content *string) error {
	if content == nil {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(*content), 0o644)
}
