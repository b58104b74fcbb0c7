package chatclient

import "time"

// Options are the session's timing knobs. Zero fields fall back to the
// defaults below; tests compress them.
type Options struct {
	// PollSettle delays the first poll after a conversation is selected.
	PollSettle time.Duration
	// PollInterval is the fixed refresh period.
	PollInterval time.Duration
	// MinSendInterval is the minimum gap between two accepted sends.
	MinSendInterval time.Duration
	// DedupeWindow suppresses a send whose text matches one of the sender's
	// own messages younger than this.
	DedupeWindow time.Duration
	// SendSafetyTimeout force-releases the send lock if the request never
	// settles.
	SendSafetyTimeout time.Duration
	// PostSendRefresh schedules one extra message fetch after a successful
	// send, to absorb server-side side effects not in the response.
	PostSendRefresh time.Duration
}

const (
	defaultPollSettle        = time.Second
	defaultPollInterval      = time.Second
	defaultMinSendInterval   = 2 * time.Second
	defaultDedupeWindow      = 5 * time.Second
	defaultSendSafetyTimeout = 10 * time.Second
	defaultPostSendRefresh   = 500 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.PollSettle == 0 {
		o.PollSettle = defaultPollSettle
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.MinSendInterval == 0 {
		o.MinSendInterval = defaultMinSendInterval
	}
	if o.DedupeWindow == 0 {
		o.DedupeWindow = defaultDedupeWindow
	}
	if o.SendSafetyTimeout == 0 {
		o.SendSafetyTimeout = defaultSendSafetyTimeout
	}
	if o.PostSendRefresh == 0 {
		o.PostSendRefresh = defaultPostSendRefresh
	}
	return o
}
