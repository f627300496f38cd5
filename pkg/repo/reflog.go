package repo

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/object"
)

// ReflogEntry records one move of a branch pointer. OldHash is empty when
// the branch was created; NewHash is empty when it was deleted.
type ReflogEntry struct {
	Branch    string      `yaml:"branch" json:"branch"`
	OldHash   object.Hash `yaml:"old" json:"old"`
	NewHash   object.Hash `yaml:"new" json:"new"`
	Timestamp time.Time   `yaml:"time" json:"time"`
	Reason    string      `yaml:"reason" json:"reason"`
}

// moveBranch points branch at id and records the move.
func (r *Repository) moveBranch(branch string, id object.Hash, reason string) {
	prev := r.branches[branch]
	r.branches[branch] = id
	r.appendReflog(branch, prev, id, reason)
	r.log.WithFields(logrus.Fields{
		"branch": branch,
		"old":    prev.Short(),
		"new":    id.Short(),
	}).Debug(reason)
}

func (r *Repository) appendReflog(branch string, oldHash, newHash object.Hash, reason string) {
	if reason == "" {
		reason = "update"
	}
	r.reflog[branch] = append(r.reflog[branch], ReflogEntry{
		Branch:    branch,
		OldHash:   oldHash,
		NewHash:   newHash,
		Timestamp: r.timestamp(),
		Reason:    reason,
	})
}

// Reflog returns the pointer moves of branch, newest first, up to limit
// entries (all when limit <= 0). An empty branch means the current one.
func (r *Repository) Reflog(branch string, limit int) []ReflogEntry {
	r.lock()
	defer r.unlock()

	if branch == "" {
		branch = r.current
	}
	log := r.reflog[branch]
	out := make([]ReflogEntry, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		out = append(out, log[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
