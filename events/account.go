package events

type AccountAdded struct {
	eventBase

	Account string
}

type AccountRemoved struct {
	eventBase

	Account string
}
