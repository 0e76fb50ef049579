package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"tshe-crm/services/post/internal/entity"
	"tshe-crm/services/post/internal/repo/persistent"

	"github.com/google/uuid"
)

// fakePostRepository keeps posts in memory. Transaction restores the previous state when fn fails.
type fakePostRepository struct {
	mu     sync.Mutex
	posts  map[string]*entity.Post
	users  map[string]string
	clock  time.Time
	writes int

	createErr error
	setErr    error
}

func newFakePostRepository() *fakePostRepository {
	return &fakePostRepository{
		posts: make(map[string]*entity.Post),
		users: make(map[string]string),
		clock: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
	}
}

var _ persistent.PostRepository = (*fakePostRepository)(nil)

func clonePost(p *entity.Post) *entity.Post {
	c := *p
	c.Approvals = append([]entity.Approval(nil), p.Approvals...)
	return &c
}

func (r *fakePostRepository) Create(ctx context.Context, post *entity.Post) error {
	if r.createErr != nil {
		return r.createErr
	}
	seen := make(map[string]bool)
	for _, a := range post.Approvals {
		if seen[a.ApproverID] {
			return entity.NewConflictError(entity.MsgDuplicateApprover)
		}
		seen[a.ApproverID] = true
	}

	r.writes++
	r.clock = r.clock.Add(time.Minute)
	post.ID = uuid.New().String()
	post.CreatedAt = r.clock
	post.UpdatedAt = r.clock
	for i := range post.Approvals {
		post.Approvals[i].ID = uuid.New().String()
		post.Approvals[i].PostID = post.ID
	}
	r.posts[post.ID] = clonePost(post)
	return nil
}

func (r *fakePostRepository) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	p, ok := r.posts[id]
	if !ok {
		return nil, entity.NewNotFoundError(entity.MsgPostNotFound)
	}
	return clonePost(p), nil
}

func (r *fakePostRepository) GetByIDForUpdate(ctx context.Context, id string) (*entity.Post, error) {
	return r.GetByID(ctx, id)
}

func (r *fakePostRepository) List(ctx context.Context, filter persistent.PostFilter) ([]*entity.Post, error) {
	var out []*entity.Post
	for _, p := range r.posts {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != "" && p.CreatedBy != filter.CreatedBy {
			continue
		}
		if filter.CampaignID != "" && (p.CampaignID == nil || *p.CampaignID != filter.CampaignID) {
			continue
		}
		if filter.ProgramID != "" && (p.ProgramID == nil || *p.ProgramID != filter.ProgramID) {
			continue
		}
		out = append(out, clonePost(p))
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *fakePostRepository) ListPendingCandidates(ctx context.Context, userID string) ([]*entity.Post, error) {
	var out []*entity.Post
	for _, p := range r.posts {
		if p.Status != entity.StatusPendingApproval {
			continue
		}
		if a := p.ApprovalFor(userID); a != nil && a.Status == entity.ApprovalPending {
			out = append(out, clonePost(p))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *fakePostRepository) Update(ctx context.Context, post *entity.Post) error {
	stored, ok := r.posts[post.ID]
	if !ok {
		return entity.NewNotFoundError(entity.MsgPostNotFound)
	}
	if !stored.IsEditable() {
		return entity.NewConflictError(entity.MsgPostFinalized)
	}
	r.writes++
	approvals := stored.Approvals
	status := stored.Status
	*stored = *clonePost(post)
	stored.Approvals = approvals
	stored.Status = status
	return nil
}

func (r *fakePostRepository) Delete(ctx context.Context, id string) error {
	stored, ok := r.posts[id]
	if !ok {
		return entity.NewNotFoundError(entity.MsgPostNotFound)
	}
	if !stored.IsDeletable() {
		return entity.NewConflictError(entity.MsgPostPublished)
	}
	r.writes++
	delete(r.posts, id)
	return nil
}

func (r *fakePostRepository) UpdateApprovalStatus(ctx context.Context, approvalID string, status entity.ApprovalStatus, comment *string, decidedAt time.Time) error {
	for _, p := range r.posts {
		for i := range p.Approvals {
			a := &p.Approvals[i]
			if a.ID != approvalID {
				continue
			}
			if !a.Status.CanTransitionTo(status) {
				return entity.NewConflictError(entity.MsgAlreadyProcessed)
			}
			r.writes++
			a.Status = status
			a.Comment = comment
			a.DecidedAt = &decidedAt
			return nil
		}
	}
	return entity.NewNotFoundError("approval not found")
}

func (r *fakePostRepository) SetPostStatus(ctx context.Context, postID string, status entity.PostStatus) error {
	if r.setErr != nil {
		return r.setErr
	}
	p, ok := r.posts[postID]
	if !ok {
		return entity.NewNotFoundError(entity.MsgPostNotFound)
	}
	if !p.Status.CanTransitionTo(status) {
		return entity.NewConflictError(entity.MsgInvalidTransition)
	}
	r.writes++
	p.Status = status
	return nil
}

func (r *fakePostRepository) GetUserName(ctx context.Context, userID string) (string, error) {
	name, ok := r.users[userID]
	if !ok {
		return "", entity.NewNotFoundError("user not found")
	}
	return name, nil
}

func (r *fakePostRepository) Transaction(ctx context.Context, fn func(repo persistent.PostRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]*entity.Post, len(r.posts))
	for id, p := range r.posts {
		snapshot[id] = clonePost(p)
	}
	writes := r.writes

	if err := fn(r); err != nil {
		r.posts = snapshot
		r.writes = writes
		return err
	}
	return nil
}

func sortNewestFirst(posts []*entity.Post) {
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
