package entity

import "sort"

// SortApprovals orders approvals by their sequence position in place.
func SortApprovals(approvals []Approval) {
	sort.SliceStable(approvals, func(i, j int) bool {
		return approvals[i].Order < approvals[j].Order
	})
}

// IsCurrentTurn reports whether a is pending and every approval ahead of it is approved.
// approvals is the full list for a's post in any order.
func IsCurrentTurn(a Approval, approvals []Approval) bool {
	if a.Status != ApprovalPending {
		return false
	}
	for _, b := range approvals {
		if b.Order < a.Order && b.Status != ApprovalApproved {
			return false
		}
	}
	return true
}

// CurrentApproval returns the approval whose turn it is, or nil when nobody can act.
func (p *Post) CurrentApproval() *Approval {
	if p.Status != StatusPendingApproval {
		return nil
	}
	for i := range p.Approvals {
		if IsCurrentTurn(p.Approvals[i], p.Approvals) {
			return &p.Approvals[i]
		}
	}
	return nil
}

// NextApproval returns the approval directly after order, or nil when order is last.
func (p *Post) NextApproval(order int) *Approval {
	var next *Approval
	for i := range p.Approvals {
		a := &p.Approvals[i]
		if a.Order > order && (next == nil || a.Order < next.Order) {
			next = a
		}
	}
	return next
}

func (p *Post) IsLastOrder(order int) bool {
	return p.NextApproval(order) == nil
}

// NewApprovals builds the PENDING approval set for approverIDs, 1-based in input order.
func NewApprovals(approverIDs []string) []Approval {
	approvals := make([]Approval, len(approverIDs))
	for i, id := range approverIDs {
		approvals[i] = Approval{
			ApproverID: id,
			Order:      i + 1,
			Status:     ApprovalPending,
		}
	}
	return approvals
}
