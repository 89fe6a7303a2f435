package mail

import (
	"strings"
)

// Inbox is the path of the only folder a POP mailbox has.
const Inbox = "INBOX"

// Folder is one node of an account's folder tree.
type Folder struct {
	Name  string
	Path  string
	Delim string

	// Selectable is false for container-only nodes.
	Selectable bool

	MsgCount    int
	UnseenCount int
	RecentCount int

	Children []*Folder

	// parent is a lookup link only; the parent owns the child.
	parent *Folder
}

func NewFolder(name, path, delim string) *Folder {
	return &Folder{
		Name:       name,
		Path:       path,
		Delim:      delim,
		Selectable: true,
	}
}

func (folder *Folder) Parent() *Folder {
	return folder.parent
}

// AddChild appends child to the folder's children.
func (folder *Folder) AddChild(child *Folder) {
	child.parent = folder
	folder.Children = append(folder.Children, child)
}

// Find returns the folder with the given path in this subtree.
func (folder *Folder) Find(path string) (*Folder, bool) {
	if folder.Path == path {
		return folder, true
	}

	for _, child := range folder.Children {
		if found, ok := child.Find(path); ok {
			return found, true
		}
	}

	return nil, false
}

// Walk calls fn on every folder in the subtree, parents before children.
func (folder *Folder) Walk(fn func(*Folder)) {
	fn(folder)

	for _, child := range folder.Children {
		child.Walk(fn)
	}
}

// Same reports whether both folders have the same path.
func (folder *Folder) Same(other *Folder) bool {
	if folder == nil || other == nil {
		return false
	}

	return folder.Path == other.Path
}

// Clone copies the folder and its subtree. The copy's root has no parent.
func (folder *Folder) Clone() *Folder {
	clone := &Folder{
		Name:        folder.Name,
		Path:        folder.Path,
		Delim:       folder.Delim,
		Selectable:  folder.Selectable,
		MsgCount:    folder.MsgCount,
		UnseenCount: folder.UnseenCount,
		RecentCount: folder.RecentCount,
	}

	for _, child := range folder.Children {
		clone.AddChild(child.Clone())
	}

	return clone
}

// Segments splits the path on the folder's delimiter.
func (folder *Folder) Segments() []string {
	if folder.Delim == "" {
		return []string{folder.Path}
	}

	return strings.Split(folder.Path, folder.Delim)
}

func (folder *Folder) String() string {
	return folder.Path
}
