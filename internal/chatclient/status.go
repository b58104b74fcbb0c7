package chatclient

// Status is the client-side delivery state of a message. It is never
// persisted; the server only knows the is_read flag.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// deriveStatus maps the server's single read flag onto a display status for
// messages this session did not send itself.
func deriveStatus(isRead bool) Status {
	if isRead {
		return StatusRead
	}
	return StatusDelivered
}

// canTransition enumerates the legal moves of the delivery state machine:
//
//	sending -> sent | failed
//	sent    -> read
//	delivered -> read
//
// read and failed are terminal (a failed message only leaves the machine by
// being removed on retry).
func canTransition(from, to Status) bool {
	switch from {
	case StatusSending:
		return to == StatusSent || to == StatusFailed
	case StatusSent, StatusDelivered:
		return to == StatusRead
	default:
		return false
	}
}
