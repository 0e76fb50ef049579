package entity

var postTransitions = map[PostStatus][]PostStatus{
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        {StatusPublished},
}

var approvalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending: {ApprovalApproved, ApprovalRejected},
}

func (s PostStatus) Valid() bool {
	switch s {
	case StatusPendingApproval, StatusApproved, StatusRejected, StatusPublished:
		return true
	}
	return false
}

// CanTransitionTo is the only place that decides which post status changes exist.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	for _, allowed := range postTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	for _, allowed := range approvalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesOf lists the statuses a post may move to next from.
func SourcesOf(next PostStatus) []PostStatus {
	var sources []PostStatus
	for from, targets := range postTransitions {
		for _, to := range targets {
			if to == next {
				sources = append(sources, from)
			}
		}
	}
	return sources
}
