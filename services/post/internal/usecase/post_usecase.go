package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"reflect"
	"strings"
	"time"

	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/models"
	"tshe-crm/pkg/s3"
	"tshe-crm/pkg/tracing"
	"tshe-crm/services/post/internal/entity"
	"tshe-crm/services/post/internal/repo/persistent"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	postCacheTTL       = 5 * time.Minute
	notifyTimeout      = 5 * time.Second
	defaultImageType   = "image/jpeg"
	postCacheKeyPrefix = "post:"
	postCacheGenPrefix = "post_gen:"
	postCacheGenTTL    = 2 * postCacheTTL
)

// Notifier delivers workflow notifications. Failures never affect the workflow.
type Notifier interface {
	Notify(ctx context.Context, userID string, notificationType models.NotificationType, title, message, postID string) error
}

// ImageStore keeps uploaded post images. *s3.Client satisfies it.
type ImageStore interface {
	UploadFile(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error)
	DeleteFile(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

type CreatePostInput struct {
	Caption     string     `json:"caption" validate:"required"`
	StartDate   *time.Time `json:"start_date" validate:"required"`
	EndDate     *time.Time `json:"end_date" validate:"required"`
	ApproverIDs []string   `json:"approver_ids" validate:"required,min=1,unique,dive,uuid"`
	ImageURL    *string    `json:"image_url" validate:"omitempty,url"`
	Budget      *float64   `json:"budget" validate:"omitempty,gte=0"`
	ProgramID   *string    `json:"program_id" validate:"omitempty,uuid"`
	CampaignID  *string    `json:"campaign_id" validate:"omitempty,uuid"`
}

// UpdatePostInput carries the editable fields; nil leaves a field unchanged.
type UpdatePostInput struct {
	Caption    *string    `json:"caption" validate:"omitempty,min=1"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	ImageURL   *string    `json:"image_url" validate:"omitempty,url"`
	Budget     *float64   `json:"budget" validate:"omitempty,gte=0"`
	ProgramID  *string    `json:"program_id" validate:"omitempty,uuid"`
	CampaignID *string    `json:"campaign_id" validate:"omitempty,uuid"`
}

type ListPostsInput struct {
	Status     string
	CreatedBy  string
	CampaignID string
	ProgramID  string
	Limit      int
	Offset     int
}

type PostUseCase interface {
	CreatePost(ctx context.Context, userID string, input CreatePostInput, image *multipart.FileHeader) (*entity.Post, error)
	GetPost(ctx context.Context, postID string) (*entity.Post, error)
	ListPosts(ctx context.Context, input ListPostsInput) ([]*entity.Post, error)
	UpdatePost(ctx context.Context, postID, userID string, input UpdatePostInput) (*entity.Post, error)
	DeletePost(ctx context.Context, postID, userID string, role models.UserRole) error
	ApprovePost(ctx context.Context, postID, userID string, comment *string) (*entity.Post, error)
	RejectPost(ctx context.Context, postID, userID, comment string) (*entity.Post, error)
	PublishPost(ctx context.Context, postID, userID string, role models.UserRole) (*entity.Post, error)
	ListPendingApprovals(ctx context.Context, userID string) ([]*entity.Post, error)
}

type postUseCase struct {
	postRepo    persistent.PostRepository
	notifier    Notifier
	images      ImageStore
	redisClient *redis.Client
	validate    *validator.Validate
	logger      *logger.Logger
	now         func() time.Time
}

// NewPostUseCase wires the workflow. images and redisClient may be nil.
func NewPostUseCase(
	postRepo persistent.PostRepository,
	notifier Notifier,
	images ImageStore,
	redisClient *redis.Client,
	logger *logger.Logger,
) PostUseCase {
	return &postUseCase{
		postRepo:    postRepo,
		notifier:    notifier,
		images:      images,
		redisClient: redisClient,
		validate:    newValidator(),
		logger:      logger,
		now:         time.Now,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func (uc *postUseCase) CreatePost(ctx context.Context, userID string, input CreatePostInput, image *multipart.FileHeader) (post *entity.Post, err error) {
	ctx, span := tracing.StartSpan(ctx, "post.create", attribute.String("user.id", userID))
	defer func() { tracing.EndSpan(span, err) }()

	if err := uc.validateCreate(&input); err != nil {
		return nil, err
	}

	imageURL := input.ImageURL
	if image != nil {
		uploaded, err := uc.uploadImage(ctx, userID, image)
		if err != nil {
			return nil, err
		}
		imageURL = &uploaded
	}

	post = &entity.Post{
		Caption:    input.Caption,
		ImageURL:   imageURL,
		Budget:     input.Budget,
		StartDate:  *input.StartDate,
		EndDate:    *input.EndDate,
		Status:     entity.StatusPendingApproval,
		ProgramID:  input.ProgramID,
		CampaignID: input.CampaignID,
		CreatedBy:  userID,
		Approvals:  entity.NewApprovals(input.ApproverIDs),
	}

	if err := uc.postRepo.Create(ctx, post); err != nil {
		if image != nil {
			uc.removeImage(ctx, *imageURL)
		}
		if entity.KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	uc.logger.Info("Post %s created by %s with %d approvers", post.ID, userID, len(post.Approvals))

	first := post.Approvals[0]
	creatorName := uc.userName(ctx, userID)
	uc.notify(ctx, first.ApproverID, models.NotificationApprovalRequest,
		"Approval requested",
		fmt.Sprintf("%s requested your approval for post %q", creatorName, post.Caption),
		post.ID)

	return post, nil
}

// validateCreate reports the first failing rule. Required fields, approvers and the date range
// are checked in that order before any other field rule.
func (uc *postUseCase) validateCreate(input *CreatePostInput) error {
	input.Caption = strings.TrimSpace(input.Caption)

	var fieldErrs validator.ValidationErrors
	if err := uc.validate.Struct(input); err != nil && !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate input: %w", err)
	}

	for _, fe := range fieldErrs {
		switch fe.StructField() {
		case "Caption", "StartDate", "EndDate":
			return entity.NewValidationError(entity.MsgRequiredFields)
		}
	}
	for _, fe := range fieldErrs {
		if fe.StructField() == "ApproverIDs" && (fe.Tag() == "required" || fe.Tag() == "min") {
			return entity.NewValidationError(entity.MsgApproverRequired)
		}
	}
	if input.EndDate.Before(*input.StartDate) {
		return entity.NewValidationError(entity.MsgEndBeforeStart)
	}
	if len(fieldErrs) > 0 {
		return entity.NewValidationError(fieldMessage(fieldErrs[0]))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.StructField()
	switch {
	case field == "Budget":
		return entity.MsgNegativeBudget
	case field == "ApproverIDs" && fe.Tag() == "unique":
		return entity.MsgDuplicateApprover
	case strings.HasPrefix(field, "ApproverIDs"):
		return "invalid approver id"
	case field == "Caption":
		return entity.MsgRequiredFields
	default:
		return fmt.Sprintf("invalid %s", fe.Field())
	}
}

func (uc *postUseCase) GetPost(ctx context.Context, postID string) (*entity.Post, error) {
	if post := uc.cachedPost(ctx, postID); post != nil {
		return post, nil
	}

	gen := uc.cacheGeneration(ctx, postID)
	post, err := uc.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	uc.cachePost(ctx, post, gen)
	return post, nil
}

func (uc *postUseCase) ListPosts(ctx context.Context, input ListPostsInput) ([]*entity.Post, error) {
	status := entity.PostStatus(strings.ToUpper(input.Status))
	if status != "" && !status.Valid() {
		return nil, entity.NewValidationError(entity.MsgInvalidStatus)
	}
	if input.Limit < 0 || input.Offset < 0 {
		return nil, entity.NewValidationError("limit and offset must not be negative")
	}

	return uc.postRepo.List(ctx, persistent.PostFilter{
		Status:     status,
		CreatedBy:  input.CreatedBy,
		CampaignID: input.CampaignID,
		ProgramID:  input.ProgramID,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
}

func (uc *postUseCase) UpdatePost(ctx context.Context, postID, userID string, input UpdatePostInput) (*entity.Post, error) {
	post, err := uc.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if post.CreatedBy != userID {
		return nil, entity.NewForbiddenError(entity.MsgNotCreator)
	}
	if !post.IsEditable() {
		return nil, entity.NewConflictError(entity.MsgPostFinalized)
	}

	if err := uc.validate.Struct(&input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return nil, entity.NewValidationError(fieldMessage(fieldErrs[0]))
		}
		return nil, fmt.Errorf("failed to validate input: %w", err)
	}

	if input.Caption != nil {
		caption := strings.TrimSpace(*input.Caption)
		if caption == "" {
			return nil, entity.NewValidationError(entity.MsgRequiredFields)
		}
		post.Caption = caption
	}
	if input.StartDate != nil {
		post.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		post.EndDate = *input.EndDate
	}
	if post.EndDate.Before(post.StartDate) {
		return nil, entity.NewValidationError(entity.MsgEndBeforeStart)
	}
	if input.ImageURL != nil {
		post.ImageURL = input.ImageURL
	}
	if input.Budget != nil {
		post.Budget = input.Budget
	}
	if input.ProgramID != nil {
		post.ProgramID = input.ProgramID
	}
	if input.CampaignID != nil {
		post.CampaignID = input.CampaignID
	}

	if err := uc.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	uc.invalidatePost(ctx, postID)
	return post, nil
}

func (uc *postUseCase) DeletePost(ctx context.Context, postID, userID string, role models.UserRole) error {
	post, err := uc.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	if post.CreatedBy != userID && role != models.RoleAdmin {
		return entity.NewForbiddenError(entity.MsgDeleteForbidden)
	}
	if !post.IsDeletable() {
		return entity.NewConflictError(entity.MsgPostPublished)
	}

	if err := uc.postRepo.Delete(ctx, postID); err != nil {
		return err
	}

	uc.invalidatePost(ctx, postID)
	if post.ImageURL != nil {
		uc.removeImage(ctx, *post.ImageURL)
	}
	uc.logger.Info("Post %s deleted by %s", postID, userID)
	return nil
}

func (uc *postUseCase) ApprovePost(ctx context.Context, postID, userID string, comment *string) (post *entity.Post, err error) {
	ctx, span := tracing.StartSpan(ctx, "post.approve",
		attribute.String("post.id", postID), attribute.String("user.id", userID))
	defer func() { tracing.EndSpan(span, err) }()

	comment = normalizeComment(comment)

	var decided entity.Approval
	var last bool
	err = uc.postRepo.Transaction(ctx, func(repo persistent.PostRepository) error {
		locked, approval, err := uc.lockTurn(ctx, repo, postID, userID)
		if err != nil {
			return err
		}

		decidedAt := uc.now().UTC()
		if err := repo.UpdateApprovalStatus(ctx, approval.ID, entity.ApprovalApproved, comment, decidedAt); err != nil {
			return err
		}
		approval.Status = entity.ApprovalApproved
		approval.Comment = comment
		approval.DecidedAt = &decidedAt

		last = locked.IsLastOrder(approval.Order)
		if last {
			if err := repo.SetPostStatus(ctx, postID, entity.StatusApproved); err != nil {
				return err
			}
			locked.Status = entity.StatusApproved
		}
		decided = *approval
		post = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.invalidatePost(ctx, postID)
	uc.logger.Info("Post %s approved by %s at order %d", postID, userID, decided.Order)

	approverName := uc.userName(ctx, userID)
	if last {
		uc.notify(ctx, post.CreatedBy, models.NotificationPostApproved,
			"Post approved",
			fmt.Sprintf("Your post %q was fully approved", post.Caption),
			post.ID)
		return post, nil
	}

	uc.notify(ctx, post.CreatedBy, models.NotificationApprovalProgress,
		"Approval progress",
		fmt.Sprintf("%s approved your post %q (%d of %d)", approverName, post.Caption, decided.Order, len(post.Approvals)),
		post.ID)

	if next := post.NextApproval(decided.Order); next != nil {
		uc.notify(ctx, next.ApproverID, models.NotificationApprovalRequest,
			"Approval requested",
			fmt.Sprintf("%s approved post %q and it now needs your review", approverName, post.Caption),
			post.ID)
	}

	return post, nil
}

func (uc *postUseCase) RejectPost(ctx context.Context, postID, userID, comment string) (post *entity.Post, err error) {
	ctx, span := tracing.StartSpan(ctx, "post.reject",
		attribute.String("post.id", postID), attribute.String("user.id", userID))
	defer func() { tracing.EndSpan(span, err) }()

	reason := strings.TrimSpace(comment)
	if reason == "" {
		return nil, entity.NewValidationError(entity.MsgCommentRequired)
	}

	err = uc.postRepo.Transaction(ctx, func(repo persistent.PostRepository) error {
		locked, approval, err := uc.lockTurn(ctx, repo, postID, userID)
		if err != nil {
			return err
		}

		decidedAt := uc.now().UTC()
		if err := repo.UpdateApprovalStatus(ctx, approval.ID, entity.ApprovalRejected, &reason, decidedAt); err != nil {
			return err
		}
		if err := repo.SetPostStatus(ctx, postID, entity.StatusRejected); err != nil {
			return err
		}
		approval.Status = entity.ApprovalRejected
		approval.Comment = &reason
		approval.DecidedAt = &decidedAt
		locked.Status = entity.StatusRejected
		post = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.invalidatePost(ctx, postID)
	uc.logger.Info("Post %s rejected by %s", postID, userID)

	uc.notify(ctx, post.CreatedBy, models.NotificationPostRejected,
		"Post rejected",
		fmt.Sprintf("%s rejected your post %q: %s", uc.userName(ctx, userID), post.Caption, reason),
		post.ID)

	return post, nil
}

// lockTurn loads the post under a row lock and checks that userID may decide now.
func (uc *postUseCase) lockTurn(ctx context.Context, repo persistent.PostRepository, postID, userID string) (*entity.Post, *entity.Approval, error) {
	post, err := repo.GetByIDForUpdate(ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	approval := post.ApprovalFor(userID)
	if approval == nil {
		return nil, nil, entity.NewForbiddenError(entity.MsgNotApprover)
	}
	if approval.Status != entity.ApprovalPending {
		return nil, nil, entity.NewConflictError(entity.MsgAlreadyProcessed)
	}
	if post.Status != entity.StatusPendingApproval {
		return nil, nil, entity.NewConflictError(entity.MsgPostNotPending)
	}
	if !entity.IsCurrentTurn(*approval, post.Approvals) {
		return nil, nil, entity.NewConflictError(entity.MsgNotYourTurn)
	}
	return post, approval, nil
}

func (uc *postUseCase) PublishPost(ctx context.Context, postID, userID string, role models.UserRole) (post *entity.Post, err error) {
	ctx, span := tracing.StartSpan(ctx, "post.publish", attribute.String("post.id", postID))
	defer func() { tracing.EndSpan(span, err) }()

	err = uc.postRepo.Transaction(ctx, func(repo persistent.PostRepository) error {
		locked, err := repo.GetByIDForUpdate(ctx, postID)
		if err != nil {
			return err
		}
		if locked.CreatedBy != userID && role != models.RoleAdmin {
			return entity.NewForbiddenError(entity.MsgPublishForbidden)
		}
		if !locked.Status.CanTransitionTo(entity.StatusPublished) {
			return entity.NewConflictError(entity.MsgPostNotApproved)
		}
		if err := repo.SetPostStatus(ctx, postID, entity.StatusPublished); err != nil {
			return err
		}
		locked.Status = entity.StatusPublished
		post = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.invalidatePost(ctx, postID)
	uc.logger.Info("Post %s published by %s", postID, userID)
	return post, nil
}

func (uc *postUseCase) ListPendingApprovals(ctx context.Context, userID string) ([]*entity.Post, error) {
	candidates, err := uc.postRepo.ListPendingCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	posts := make([]*entity.Post, 0, len(candidates))
	for _, post := range candidates {
		approval := post.ApprovalFor(userID)
		if approval != nil && entity.IsCurrentTurn(*approval, post.Approvals) {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// notify dispatches after the transition is committed. Errors and panics are logged and dropped.
func (uc *postUseCase) notify(ctx context.Context, userID string, notificationType models.NotificationType, title, message, postID string) {
	if uc.notifier == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("[NOTIFICATION] Panic while sending %s to %s (post_id=%s): %v", notificationType, userID, postID, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := uc.notifier.Notify(ctx, userID, notificationType, title, message, postID); err != nil {
		uc.logger.Error("[NOTIFICATION] Failed to send %s to %s (post_id=%s): %v", notificationType, userID, postID, err)
	}
}

func (uc *postUseCase) userName(ctx context.Context, userID string) string {
	name, err := uc.postRepo.GetUserName(ctx, userID)
	if err != nil || name == "" {
		return userID
	}
	return name
}

func (uc *postUseCase) uploadImage(ctx context.Context, userID string, image *multipart.FileHeader) (string, error) {
	if uc.images == nil {
		return "", entity.NewValidationError("image uploads are not enabled")
	}

	src, err := image.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	contentType := image.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultImageType
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", entity.NewValidationError("image must be an image file")
	}

	url, err := uc.images.UploadFile(ctx, s3.PostImageKey(userID, image.Filename), src, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return url, nil
}

func (uc *postUseCase) removeImage(ctx context.Context, url string) {
	if uc.images == nil {
		return
	}
	key, ok := uc.images.KeyFromURL(url)
	if !ok {
		return
	}
	if err := uc.images.DeleteFile(ctx, key); err != nil {
		uc.logger.Warn("Failed to delete image %s: %v", key, err)
	}
}

func (uc *postUseCase) cachedPost(ctx context.Context, postID string) *entity.Post {
	if uc.redisClient == nil {
		return nil
	}
	data, err := uc.redisClient.Get(ctx, postCacheKeyPrefix+postID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			uc.logger.Warn("Failed to read post cache: %v", err)
		}
		return nil
	}

	var post entity.Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil
	}
	return &post
}

// cacheGeneration returns the invalidation counter for a post; a missing key reads as 0.
func (uc *postUseCase) cacheGeneration(ctx context.Context, postID string) int64 {
	if uc.redisClient == nil {
		return 0
	}
	gen, err := uc.redisClient.Get(ctx, postCacheGenPrefix+postID).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		uc.logger.Warn("Failed to read post cache generation: %v", err)
		return -1
	}
	return gen
}

// cachePost stores post only if no invalidation happened since gen was read.
func (uc *postUseCase) cachePost(ctx context.Context, post *entity.Post, gen int64) {
	if uc.redisClient == nil || gen < 0 {
		return
	}
	data, err := json.Marshal(post)
	if err != nil {
		return
	}

	genKey := postCacheGenPrefix + post.ID
	err = uc.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, postCacheKeyPrefix+post.ID, data, postCacheTTL)
			return nil
		})
		return err
	}, genKey)
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		uc.logger.Warn("Failed to cache post %s: %v", post.ID, err)
	}
}

func (uc *postUseCase) invalidatePost(ctx context.Context, postID string) {
	if uc.redisClient == nil {
		return
	}
	genKey := postCacheGenPrefix + postID
	_, err := uc.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, postCacheGenTTL)
		pipe.Del(ctx, postCacheKeyPrefix+postID)
		return nil
	})
	if err != nil {
		uc.logger.Warn("Failed to invalidate post cache %s: %v", postID, err)
	}
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
