package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tshe-crm/services/post/internal/entity"
	"tshe-crm/services/post/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PostFilter struct {
	Status     entity.PostStatus
	CreatedBy  string
	CampaignID string
	ProgramID  string
	Limit      int
	Offset     int
}

// PostRepository persists posts together with their ordered approvals.
type PostRepository interface {
	Create(ctx context.Context, post *entity.Post) error
	GetByID(ctx context.Context, id string) (*entity.Post, error)
	GetByIDForUpdate(ctx context.Context, id string) (*entity.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*entity.Post, error)
	ListPendingCandidates(ctx context.Context, userID string) ([]*entity.Post, error)
	Update(ctx context.Context, post *entity.Post) error
	Delete(ctx context.Context, id string) error
	UpdateApprovalStatus(ctx context.Context, approvalID string, status entity.ApprovalStatus, comment *string, decidedAt time.Time) error
	SetPostStatus(ctx context.Context, postID string, status entity.PostStatus) error
	GetUserName(ctx context.Context, userID string) (string, error)
	Transaction(ctx context.Context, fn func(repo PostRepository) error) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func orderApprovals(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Table: "post_approvals", Name: "order"}})
}

func (r *postRepository) Create(ctx context.Context, post *entity.Post) error {
	postModel := ToPostModel(post)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		approvals := postModel.Approvals
		postModel.Approvals = nil

		if err := tx.Omit(clause.Associations).Create(postModel).Error; err != nil {
			return err
		}

		for i := range approvals {
			approvals[i].PostID = postModel.ID
		}
		if len(approvals) > 0 {
			if err := tx.Create(&approvals).Error; err != nil {
				return err
			}
		}
		postModel.Approvals = approvals
		return nil
	})
	if err != nil {
		return translateError(err)
	}

	*post = *ToPostEntity(postModel)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*entity.Post, error) {
	var postModel model.PostModel
	if err := r.db.WithContext(ctx).Preload("Approvals", orderApprovals).
		Where("id = ?", id).First(&postModel).Error; err != nil {
		return nil, translateError(err)
	}
	return ToPostEntity(&postModel), nil
}

// GetByIDForUpdate locks the post row for the rest of the surrounding transaction.
// Approvals are read after the lock so they belong to the same snapshot as the write.
func (r *postRepository) GetByIDForUpdate(ctx context.Context, id string) (*entity.Post, error) {
	var postModel model.PostModel
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&postModel).Error; err != nil {
		return nil, translateError(err)
	}

	if err := orderApprovals(r.db.WithContext(ctx)).
		Where("post_id = ?", id).Find(&postModel.Approvals).Error; err != nil {
		return nil, fmt.Errorf("load approvals: %w", err)
	}
	return ToPostEntity(&postModel), nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*entity.Post, error) {
	var postModels []model.PostModel
	query := r.db.WithContext(ctx).Preload("Approvals", orderApprovals).Order("created_at DESC")

	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.CampaignID != "" {
		query = query.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.ProgramID != "" {
		query = query.Where("program_id = ?", filter.ProgramID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query = query.Limit(limit)
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&postModels).Error; err != nil {
		return nil, err
	}
	return toPostEntities(postModels), nil
}

// ListPendingCandidates returns pending posts on which userID still holds a PENDING approval.
// Whether it is actually the user's turn is decided by the caller.
func (r *postRepository) ListPendingCandidates(ctx context.Context, userID string) ([]*entity.Post, error) {
	var postModels []model.PostModel
	err := r.db.WithContext(ctx).Preload("Approvals", orderApprovals).
		Where("status = ?", string(entity.StatusPendingApproval)).
		Where("EXISTS (SELECT 1 FROM post_approvals pa WHERE pa.post_id = posts.id AND pa.approver_id = ? AND pa.status = ?)",
			userID, string(entity.ApprovalPending)).
		Order("created_at DESC").
		Find(&postModels).Error
	if err != nil {
		return nil, err
	}
	return toPostEntities(postModels), nil
}

// Update writes the editable content columns while the post is still editable.
func (r *postRepository) Update(ctx context.Context, post *entity.Post) error {
	postModel := ToPostModel(post)
	postModel.Approvals = nil
	postModel.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).Model(&model.PostModel{}).
		Where("id = ? AND status IN ?", post.ID, []string{string(entity.StatusPendingApproval), string(entity.StatusRejected)}).
		Select("caption", "image_url", "budget", "start_date", "end_date", "program_id", "campaign_id", "updated_at").
		Updates(postModel)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return entity.NewConflictError(entity.MsgPostFinalized)
	}
	post.UpdatedAt = postModel.UpdatedAt
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, string(entity.StatusPublished)).
		Delete(&model.PostModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.NewConflictError(entity.MsgPostPublished)
	}
	return nil
}

// UpdateApprovalStatus decides a PENDING approval. A row that was already decided yields a conflict.
func (r *postRepository) UpdateApprovalStatus(ctx context.Context, approvalID string, status entity.ApprovalStatus, comment *string, decidedAt time.Time) error {
	if !entity.ApprovalPending.CanTransitionTo(status) {
		return entity.NewConflictError(entity.MsgInvalidTransition)
	}

	result := r.db.WithContext(ctx).Model(&model.ApprovalModel{}).
		Where("id = ? AND status = ?", approvalID, string(entity.ApprovalPending)).
		Updates(map[string]interface{}{
			"status":     string(status),
			"comment":    comment,
			"decided_at": decidedAt,
			"updated_at": decidedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.NewConflictError(entity.MsgAlreadyProcessed)
	}
	return nil
}

// SetPostStatus moves a post to status only from a status the transition table allows.
func (r *postRepository) SetPostStatus(ctx context.Context, postID string, status entity.PostStatus) error {
	sources := entity.SourcesOf(status)
	if len(sources) == 0 {
		return entity.NewConflictError(entity.MsgInvalidTransition)
	}
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	result := r.db.WithContext(ctx).Model(&model.PostModel{}).
		Where("id = ? AND status IN ?", postID, from).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.NewConflictError(entity.MsgInvalidTransition)
	}
	return nil
}

func (r *postRepository) GetUserName(ctx context.Context, userID string) (string, error) {
	var user model.UserModel
	if err := r.db.WithContext(ctx).Select("id", "name").Where("id = ?", userID).First(&user).Error; err != nil {
		return "", err
	}
	return user.Name, nil
}

func (r *postRepository) Transaction(ctx context.Context, fn func(repo PostRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&postRepository{db: tx})
	})
}

func toPostEntities(models []model.PostModel) []*entity.Post {
	posts := make([]*entity.Post, len(models))
	for i := range models {
		posts[i] = ToPostEntity(&models[i])
	}
	return posts
}

// translateError maps driver errors onto workflow errors where the caller can act on them.
func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.NewNotFoundError(entity.MsgPostNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return entity.NewConflictError(entity.MsgDuplicateApprover)
		case pgForeignKeyViolation:
			return entity.NewValidationError(entity.MsgUnknownUser)
		}
	}
	return err
}
