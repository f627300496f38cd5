package repo

import "github.com/odvcencio/solvc/pkg/object"

// EventType names a repository event.
type EventType string

const (
	EventRepositoryInitialized EventType = "repository-initialized"
	EventCommitCreated         EventType = "commit-created"
	EventBranchCreated         EventType = "branch-created"
	EventBranchDeleted         EventType = "branch-deleted"
	EventBranchSwitched        EventType = "branch-switched"
	EventBranchesMerged        EventType = "branches-merged"
	EventMergeRequestCreated   EventType = "merge-request-created"
	EventMergeRequestUpdated   EventType = "merge-request-updated"
	EventFilesStaged           EventType = "files-staged"
	EventFilesUnstaged         EventType = "files-unstaged"
)

// Event is delivered to subscribers of Repository.Events after the
// operation that produced it has completed. Payload holds one of the
// *Payload types below, matching Type.
type Event struct {
	Type    EventType
	Payload any
}

type RepositoryInitializedPayload struct {
	CommitID object.Hash
}

type CommitCreatedPayload struct {
	Commit *Commit
}

type BranchCreatedPayload struct {
	Branch Branch
}

type BranchDeletedPayload struct {
	Branch Branch
}

type BranchSwitchedPayload struct {
	BranchName string
}

type BranchesMergedPayload struct {
	SourceBranch string
	TargetBranch string
	Result       *MergeResult
}

type MergeRequestPayload struct {
	MergeRequest *MergeRequest
}

type FilesPayload struct {
	Paths []string
}

func (r *Repository) emit(t EventType, payload any) {
	r.queue.Push(Event{Type: t, Payload: payload})
}
