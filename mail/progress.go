package mail

type ProgressKind int

const (
	// ProgressNetwork counts bytes received; max is unused.
	ProgressNetwork ProgressKind = iota

	// ProgressProcessing counts processed items out of max.
	ProgressProcessing
)

// ProgressHandler receives progress from long-running protocol operations.
type ProgressHandler interface {
	MailProgress(kind ProgressKind, count, max int)
}

type ProgressHandlerFunc func(kind ProgressKind, count, max int)

func (fn ProgressHandlerFunc) MailProgress(kind ProgressKind, count, max int) {
	fn(kind, count, max)
}

// NotifyProgress is a nil-safe call of handler.MailProgress.
func NotifyProgress(handler ProgressHandler, kind ProgressKind, count, max int) {
	if handler != nil {
		handler.MailProgress(kind, count, max)
	}
}
