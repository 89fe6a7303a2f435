package events

// ConnectionOpened is published once a client has connected and authenticated to its server.
type ConnectionOpened struct {
	eventBase

	Account  string
	Protocol string
}

type ConnectionClosed struct {
	eventBase

	Account  string
	Protocol string
}
