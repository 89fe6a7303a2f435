package events

// RequestStatus is a human-readable status update of a running request.
type RequestStatus struct {
	eventBase

	RequestID string
	Message   string

	// Progress is a percentage, or -1 if the request has no known total.
	Progress int
}

type RequestComplete struct {
	eventBase

	RequestID string
}

// RequestFailed reports a failed request. Final is true when retrying is pointless.
type RequestFailed struct {
	eventBase

	RequestID string
	Cause     error
	Final     bool
}
