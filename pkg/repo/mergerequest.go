package repo

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/solvc/pkg/object"
)

// MergeRequestStatus is the lifecycle state of a merge request. Closed
// and merged are terminal.
type MergeRequestStatus string

const (
	MergeRequestOpen   MergeRequestStatus = "open"
	MergeRequestClosed MergeRequestStatus = "closed"
	MergeRequestMerged MergeRequestStatus = "merged"
)

// ReviewVerdict is the outcome of a review.
type ReviewVerdict string

const (
	ReviewApprove        ReviewVerdict = "approve"
	ReviewRequestChanges ReviewVerdict = "request-changes"
	ReviewComment        ReviewVerdict = "comment"
)

// Review is review metadata attached to a merge request.
type Review struct {
	Author    object.Author `yaml:"author"`
	Verdict   ReviewVerdict `yaml:"verdict"`
	Body      string        `yaml:"body,omitempty"`
	CreatedAt time.Time     `yaml:"created_at"`
}

// MergeRequest proposes merging SourceBranch into TargetBranch.
// SourceHead and TargetHead record the branch heads when the request was
// created and are refreshed when it leaves the open state.
type MergeRequest struct {
	ID           string             `yaml:"id"`
	SourceBranch string             `yaml:"source_branch"`
	TargetBranch string             `yaml:"target_branch"`
	Title        string             `yaml:"title"`
	Description  string             `yaml:"description,omitempty"`
	Author       object.Author      `yaml:"author"`
	Status       MergeRequestStatus `yaml:"status"`
	CreatedAt    time.Time          `yaml:"created_at"`
	UpdatedAt    time.Time          `yaml:"updated_at"`
	SourceHead   object.Hash        `yaml:"source_head"`
	TargetHead   object.Hash        `yaml:"target_head"`
	MergeCommit  object.Hash        `yaml:"merge_commit,omitempty"`
	Reviews      []Review           `yaml:"reviews,omitempty"`
}

func (mr *MergeRequest) clone() *MergeRequest {
	c := *mr
	c.Reviews = append([]Review(nil), mr.Reviews...)
	return &c
}

// Approvals returns the number of approving reviews.
func (mr *MergeRequest) Approvals() int {
	n := 0
	for _, rv := range mr.Reviews {
		if rv.Verdict == ReviewApprove {
			n++
		}
	}
	return n
}

// CreateMergeRequest opens a request to merge source into target. Both
// branches must exist and differ.
func (r *Repository) CreateMergeRequest(source, target, title, description string, author object.Author) (*MergeRequest, error) {
	r.lock()
	defer r.unlock()

	srcHead, ok := r.branches[source]
	if !ok {
		return nil, fmt.Errorf("create merge request: %w", &BranchNotFoundError{Name: source})
	}
	tgtHead, ok := r.branches[target]
	if !ok {
		return nil, fmt.Errorf("create merge request: %w", &BranchNotFoundError{Name: target})
	}
	if source == target {
		return nil, fmt.Errorf("create merge request: %w", ErrSameBranch)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("create merge request: %w", ErrEmptyTitle)
	}

	now := r.timestamp()
	mr := &MergeRequest{
		ID:           r.newID(),
		SourceBranch: source,
		TargetBranch: target,
		Title:        title,
		Description:  description,
		Author:       author,
		Status:       MergeRequestOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
		SourceHead:   srcHead,
		TargetHead:   tgtHead,
	}
	r.mergeRequests[mr.ID] = mr

	r.log.WithFields(logrus.Fields{
		"id":     mr.ID,
		"source": source,
		"target": target,
	}).Info("merge request created")
	r.emit(EventMergeRequestCreated, MergeRequestPayload{MergeRequest: mr.clone()})
	return mr.clone(), nil
}

// UpdateMergeRequestStatus moves a merge request to status. The only
// legal transitions are open -> closed and open -> merged; the latter
// performs the merge first and leaves the request open if it fails.
func (r *Repository) UpdateMergeRequestStatus(id string, status MergeRequestStatus) (*MergeRequest, error) {
	r.lock()
	defer r.unlock()

	mr, ok := r.mergeRequests[id]
	if !ok {
		return nil, fmt.Errorf("update merge request: %w", &NotFoundError{Kind: "merge request", ID: id})
	}
	if mr.Status != MergeRequestOpen || (status != MergeRequestClosed && status != MergeRequestMerged) {
		return nil, &InvalidStateTransitionError{ID: id, From: mr.Status, To: status}
	}

	srcHead, tgtHead := r.branches[mr.SourceBranch], r.branches[mr.TargetBranch]
	if status == MergeRequestMerged {
		res, err := r.merge(mr.SourceBranch, mr.TargetBranch, r.mergeOpts)
		if err != nil {
			return nil, fmt.Errorf("update merge request %s: %w", id, err)
		}
		mr.MergeCommit = res.Head
	}
	mr.SourceHead, mr.TargetHead = srcHead, tgtHead
	mr.Status = status
	mr.UpdatedAt = r.timestamp()

	r.log.WithFields(logrus.Fields{"id": id, "status": status}).Info("merge request updated")
	r.emit(EventMergeRequestUpdated, MergeRequestPayload{MergeRequest: mr.clone()})
	return mr.clone(), nil
}

// ReviewMergeRequest attaches a review to an open merge request.
func (r *Repository) ReviewMergeRequest(id string, review Review) (*MergeRequest, error) {
	r.lock()
	defer r.unlock()

	mr, ok := r.mergeRequests[id]
	if !ok {
		return nil, fmt.Errorf("review merge request: %w", &NotFoundError{Kind: "merge request", ID: id})
	}
	if mr.Status != MergeRequestOpen {
		return nil, fmt.Errorf("review merge request %s: %w", id, ErrMergeRequestNotOpen)
	}
	switch review.Verdict {
	case ReviewApprove, ReviewRequestChanges, ReviewComment:
	default:
		return nil, fmt.Errorf("review merge request %s: %w: verdict %q", id, ErrInvalidReview, review.Verdict)
	}
	if review.Verdict == ReviewComment && strings.TrimSpace(review.Body) == "" {
		return nil, fmt.Errorf("review merge request %s: %w: comment has no body", id, ErrInvalidReview)
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = r.timestamp()
	}
	mr.Reviews = append(mr.Reviews, review)
	mr.UpdatedAt = review.CreatedAt

	r.log.WithFields(logrus.Fields{"id": id, "verdict": review.Verdict}).Info("merge request reviewed")
	r.emit(EventMergeRequestUpdated, MergeRequestPayload{MergeRequest: mr.clone()})
	return mr.clone(), nil
}

// MergeRequest returns the merge request with the given id.
func (r *Repository) MergeRequest(id string) (*MergeRequest, error) {
	r.lock()
	defer r.unlock()

	mr, ok := r.mergeRequests[id]
	if !ok {
		return nil, &NotFoundError{Kind: "merge request", ID: id}
	}
	return mr.clone(), nil
}

// MergeRequests lists merge requests, oldest first. An empty status lists
// all of them.
func (r *Repository) MergeRequests(status MergeRequestStatus) []*MergeRequest {
	r.lock()
	defer r.unlock()
	return r.listMergeRequests(status)
}

func (r *Repository) listMergeRequests(status MergeRequestStatus) []*MergeRequest {
	var out []*MergeRequest
	for _, mr := range r.mergeRequests {
		if status == "" || mr.Status == status {
			out = append(out, mr.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MergeRequestCommits returns the commits the request would bring into
// its target: those reachable from the source head but not from the
// target head, children first. Open requests use the live branch heads,
// finished ones the heads recorded when they were closed or merged.
func (r *Repository) MergeRequestCommits(id string) ([]*Commit, error) {
	r.lock()
	defer r.unlock()

	mr, ok := r.mergeRequests[id]
	if !ok {
		return nil, fmt.Errorf("merge request commits: %w", &NotFoundError{Kind: "merge request", ID: id})
	}
	srcHead, tgtHead := mr.SourceHead, mr.TargetHead
	if mr.Status == MergeRequestOpen {
		if h, ok := r.branches[mr.SourceBranch]; ok {
			srcHead = h
		}
		if h, ok := r.branches[mr.TargetBranch]; ok {
			tgtHead = h
		}
	}

	exclude := make(map[object.Hash]bool)
	if tgtHead != "" {
		_, objs, err := r.topoOrder([]object.Hash{tgtHead}, nil)
		if err != nil {
			return nil, fmt.Errorf("merge request commits: %w", err)
		}
		for h := range objs {
			exclude[h] = true
		}
	}
	ids, objs, err := r.topoOrder([]object.Hash{srcHead}, exclude)
	if err != nil {
		return nil, fmt.Errorf("merge request commits: %w", err)
	}
	out := make([]*Commit, 0, len(ids))
	for _, h := range ids {
		view, err := r.commitView(h, objs[h])
		if err != nil {
			return nil, fmt.Errorf("merge request commits: %w", err)
		}
		out = append(out, view)
	}
	return out, nil
}
