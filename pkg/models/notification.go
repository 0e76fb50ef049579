package models

type NotificationType string

const (
	NotificationApprovalRequest  NotificationType = "APPROVAL_REQUEST"
	NotificationApprovalProgress NotificationType = "APPROVAL_PROGRESS"
	NotificationPostApproved     NotificationType = "POST_APPROVED"
	NotificationPostRejected     NotificationType = "POST_REJECTED"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationApprovalRequest, NotificationApprovalProgress, NotificationPostApproved, NotificationPostRejected:
		return true
	}
	return false
}

// Priority is the RabbitMQ message priority for the type. Requests that block someone's work go first.
func (t NotificationType) Priority() int {
	switch t {
	case NotificationApprovalRequest:
		return 8
	case NotificationPostRejected:
		return 7
	case NotificationPostApproved:
		return 6
	default:
		return 3
	}
}
