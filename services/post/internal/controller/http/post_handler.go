package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/middleware"
	"tshe-crm/pkg/models"
	"tshe-crm/services/post/internal/entity"
	"tshe-crm/services/post/internal/usecase"

	"github.com/gin-gonic/gin"
)

const maxImageSize = 10 << 20

var errorStatus = map[entity.ErrorKind]int{
	entity.KindValidation: http.StatusBadRequest,
	entity.KindNotFound:   http.StatusNotFound,
	entity.KindForbidden:  http.StatusForbidden,
	entity.KindConflict:   http.StatusConflict,
}

type PostHandler struct {
	postUseCase usecase.PostUseCase
	logger      *logger.Logger
}

func NewPostHandler(postUseCase usecase.PostUseCase, logger *logger.Logger) *PostHandler {
	return &PostHandler{
		postUseCase: postUseCase,
		logger:      logger,
	}
}

// PostResponse is a post with its ordered approvals and whose turn it currently is.
type PostResponse struct {
	*entity.Post
	CurrentApproverID *string `json:"current_approver_id"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type DecisionRequest struct {
	Comment *string `json:"comment"`
}

func toPostResponse(post *entity.Post) PostResponse {
	resp := PostResponse{Post: post}
	if current := post.CurrentApproval(); current != nil {
		id := current.ApproverID
		resp.CurrentApproverID = &id
	}
	return resp
}

func toPostResponses(posts []*entity.Post) []PostResponse {
	out := make([]PostResponse, len(posts))
	for i, post := range posts {
		out[i] = toPostResponse(post)
	}
	return out
}

func (h *PostHandler) respondError(c *gin.Context, action string, err error) {
	var domainErr *entity.Error
	if errors.As(err, &domainErr) {
		status, ok := errorStatus[domainErr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": domainErr.Message, "code": string(domainErr.Kind)})
		return
	}

	h.logger.Error("Failed to %s: %v", action, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action, "code": "INTERNAL"})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": string(entity.KindValidation)})
}

// CreatePost godoc
// @Summary      Create a post for approval
// @Description  Creates a post in PENDING_APPROVAL with one approval per approver, in the given order. Accepts JSON, or multipart/form-data with an optional image file.
// @Tags         posts
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        request body usecase.CreatePostInput false "Post data (JSON)"
// @Param        caption formData string false "Caption (multipart)"
// @Param        start_date formData string false "Start date, RFC3339 or YYYY-MM-DD (multipart)"
// @Param        end_date formData string false "End date, RFC3339 or YYYY-MM-DD (multipart)"
// @Param        approver_ids formData []string false "Approver IDs in approval order (multipart)"
// @Param        image formData file false "Post image (multipart)"
// @Success      201  {object}  PostResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /posts [post]
func (h *PostHandler) CreatePost(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var input usecase.CreatePostInput
	var image *multipart.FileHeader
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		var err error
		if input, err = parseMultipartPost(c); err != nil {
			badRequest(c, err.Error())
			return
		}
		if image, err = c.FormFile("image"); err != nil {
			image = nil
		} else if image.Size > maxImageSize {
			badRequest(c, "image exceeds 10MB")
			return
		}
	} else if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	post, err := h.postUseCase.CreatePost(c.Request.Context(), userID, input, image)
	if err != nil {
		h.respondError(c, "create post", err)
		return
	}

	c.JSON(http.StatusCreated, toPostResponse(post))
}

func parseMultipartPost(c *gin.Context) (usecase.CreatePostInput, error) {
	input := usecase.CreatePostInput{
		Caption: c.PostForm("caption"),
	}

	var err error
	if input.StartDate, err = parseFormDate(c.PostForm("start_date")); err != nil {
		return input, errors.New("invalid start_date")
	}
	if input.EndDate, err = parseFormDate(c.PostForm("end_date")); err != nil {
		return input, errors.New("invalid end_date")
	}

	if ids, ok := c.GetPostFormArray("approver_ids"); ok {
		for _, raw := range ids {
			for _, id := range strings.Split(raw, ",") {
				if id = strings.TrimSpace(id); id != "" {
					input.ApproverIDs = append(input.ApproverIDs, id)
				}
			}
		}
	}

	if raw := c.PostForm("budget"); raw != "" {
		budget, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return input, errors.New("invalid budget")
		}
		input.Budget = &budget
	}
	input.ProgramID = optionalForm(c, "program_id")
	input.CampaignID = optionalForm(c, "campaign_id")
	return input, nil
}

func parseFormDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := usecase.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// bindOptionalJSON treats a missing or empty body, chunked or not, as an empty object.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func optionalForm(c *gin.Context, key string) *string {
	v := strings.TrimSpace(c.PostForm(key))
	if v == "" {
		return nil
	}
	return &v
}

// GetPost godoc
// @Summary      Get post by ID
// @Description  Returns the post, its approvals in order, and the approver whose turn it is
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  PostResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /posts/{id} [get]
func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.postUseCase.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "get post", err)
		return
	}

	c.JSON(http.StatusOK, toPostResponse(post))
}

// ListPosts godoc
// @Summary      List posts
// @Description  Lists posts newest first, optionally filtered
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        status query string false "Post status" Enums(PENDING_APPROVAL, APPROVED, REJECTED, PUBLISHED)
// @Param        creator_id query string false "Creator ID"
// @Param        campaign_id query string false "Campaign ID"
// @Param        program_id query string false "Program ID"
// @Param        limit query int false "Page size (default 20, max 100)"
// @Param        offset query int false "Offset"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /posts [get]
func (h *PostHandler) ListPosts(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		badRequest(c, "invalid offset")
		return
	}

	posts, err := h.postUseCase.ListPosts(c.Request.Context(), usecase.ListPostsInput{
		Status:     c.Query("status"),
		CreatedBy:  c.Query("creator_id"),
		CampaignID: c.Query("campaign_id"),
		ProgramID:  c.Query("program_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.respondError(c, "list posts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": toPostResponses(posts), "count": len(posts)})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// ListPendingApprovals godoc
// @Summary      Posts waiting on the current user
// @Description  Pending posts where it is currently the caller's turn to approve or reject
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /posts/pending-approvals [get]
func (h *PostHandler) ListPendingApprovals(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	posts, err := h.postUseCase.ListPendingApprovals(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "list pending approvals", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": toPostResponses(posts), "count": len(posts)})
}

// UpdatePost godoc
// @Summary      Update post
// @Description  Creator-only edit while the post is pending or rejected. Approvers cannot be changed.
// @Tags         posts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Param        request body usecase.UpdatePostInput true "Fields to change"
// @Success      200  {object}  PostResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /posts/{id} [put]
func (h *PostHandler) UpdatePost(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var input usecase.UpdatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	post, err := h.postUseCase.UpdatePost(c.Request.Context(), c.Param("id"), userID, input)
	if err != nil {
		h.respondError(c, "update post", err)
		return
	}

	c.JSON(http.StatusOK, toPostResponse(post))
}

// DeletePost godoc
// @Summary      Delete post
// @Description  Creator or admin; published posts cannot be deleted
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /posts/{id} [delete]
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	role := models.UserRole(c.GetString(middleware.ContextRole))

	if err := h.postUseCase.DeletePost(c.Request.Context(), c.Param("id"), userID, role); err != nil {
		h.respondError(c, "delete post", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// ApprovePost godoc
// @Summary      Approve post
// @Description  Approves the caller's approval when it is their turn. The last approval approves the post.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Param        request body DecisionRequest false "Optional comment"
// @Success      200  {object}  PostResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /posts/{id}/approve [post]
func (h *PostHandler) ApprovePost(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var req DecisionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	post, err := h.postUseCase.ApprovePost(c.Request.Context(), c.Param("id"), userID, req.Comment)
	if err != nil {
		h.respondError(c, "approve post", err)
		return
	}

	c.JSON(http.StatusOK, toPostResponse(post))
}

// RejectPost godoc
// @Summary      Reject post
// @Description  Rejects the post when it is the caller's turn. A comment is required.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Param        request body DecisionRequest true "Rejection reason"
// @Success      200  {object}  PostResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /posts/{id}/reject [post]
func (h *PostHandler) RejectPost(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	var req DecisionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	comment := ""
	if req.Comment != nil {
		comment = *req.Comment
	}

	post, err := h.postUseCase.RejectPost(c.Request.Context(), c.Param("id"), userID, comment)
	if err != nil {
		h.respondError(c, "reject post", err)
		return
	}

	c.JSON(http.StatusOK, toPostResponse(post))
}

// PublishPost godoc
// @Summary      Publish post
// @Description  Marks an approved post as published. Creator or admin.
// @Tags         posts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Post ID"
// @Success      200  {object}  PostResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Router       /posts/{id}/publish [post]
func (h *PostHandler) PublishPost(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	role := models.UserRole(c.GetString(middleware.ContextRole))

	post, err := h.postUseCase.PublishPost(c.Request.Context(), c.Param("id"), userID, role)
	if err != nil {
		h.respondError(c, "publish post", err)
		return
	}

	c.JSON(http.StatusOK, toPostResponse(post))
}
