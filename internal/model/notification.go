package model

// NotificationKind identifies which message template a dispatched
// notification uses. One kind is emitted per committed state transition.
type NotificationKind string

const (
	NotifyConfirm  NotificationKind = "CONFIRM"
	NotifyUpdate   NotificationKind = "UPDATE"
	NotifyCancel   NotificationKind = "CANCEL"
	NotifyReminder NotificationKind = "REMINDER"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotifyConfirm, NotifyUpdate, NotifyCancel, NotifyReminder:
		return true
	}
	return false
}
