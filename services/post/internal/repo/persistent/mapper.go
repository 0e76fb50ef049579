package persistent

import (
	"tshe-crm/services/post/internal/entity"
	"tshe-crm/services/post/internal/model"
)

func ToPostEntity(m *model.PostModel) *entity.Post {
	if m == nil {
		return nil
	}

	post := &entity.Post{
		ID:         m.ID,
		Caption:    m.Caption,
		ImageURL:   m.ImageURL,
		Budget:     m.Budget,
		StartDate:  m.StartDate,
		EndDate:    m.EndDate,
		Status:     entity.PostStatus(m.Status),
		ProgramID:  m.ProgramID,
		CampaignID: m.CampaignID,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Approvals:  make([]entity.Approval, len(m.Approvals)),
	}

	for i := range m.Approvals {
		post.Approvals[i] = ToApprovalEntity(&m.Approvals[i])
	}
	entity.SortApprovals(post.Approvals)

	return post
}

func ToPostModel(e *entity.Post) *model.PostModel {
	if e == nil {
		return nil
	}

	post := &model.PostModel{
		ID:         e.ID,
		Caption:    e.Caption,
		ImageURL:   e.ImageURL,
		Budget:     e.Budget,
		StartDate:  e.StartDate,
		EndDate:    e.EndDate,
		Status:     string(e.Status),
		ProgramID:  e.ProgramID,
		CampaignID: e.CampaignID,
		CreatedBy:  e.CreatedBy,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}

	if len(e.Approvals) > 0 {
		post.Approvals = make([]model.ApprovalModel, len(e.Approvals))
		for i := range e.Approvals {
			post.Approvals[i] = *ToApprovalModel(&e.Approvals[i])
		}
	}

	return post
}

func ToApprovalEntity(m *model.ApprovalModel) entity.Approval {
	if m == nil {
		return entity.Approval{}
	}

	return entity.Approval{
		ID:         m.ID,
		PostID:     m.PostID,
		ApproverID: m.ApproverID,
		Order:      m.Order,
		Status:     entity.ApprovalStatus(m.Status),
		Comment:    m.Comment,
		DecidedAt:  m.DecidedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func ToApprovalModel(e *entity.Approval) *model.ApprovalModel {
	if e == nil {
		return nil
	}

	return &model.ApprovalModel{
		ID:         e.ID,
		PostID:     e.PostID,
		ApproverID: e.ApproverID,
		Order:      e.Order,
		Status:     string(e.Status),
		Comment:    e.Comment,
		DecidedAt:  e.DecidedAt,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}
