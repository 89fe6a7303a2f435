package mail

import (
	"strings"
)

// Flags is a bitset of message flags. The zero value has no flags set.
type Flags uint32

const (
	FlagSeen Flags = 1 << iota
	FlagAnswered
	FlagFlagged
	FlagDeleted
	FlagDraft
	FlagRecent
	FlagJunk
	FlagForwarded
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagSeen, "seen"},
	{FlagAnswered, "answered"},
	{FlagFlagged, "flagged"},
	{FlagDeleted, "deleted"},
	{FlagDraft, "draft"},
	{FlagRecent, "recent"},
	{FlagJunk, "junk"},
	{FlagForwarded, "forwarded"},
}

// Has reports whether all flags in other are set.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// With returns a copy with the given flags added.
func (f Flags) With(other Flags) Flags {
	return f | other
}

// Without returns a copy with the given flags removed.
func (f Flags) Without(other Flags) Flags {
	return f &^ other
}

// Apply adds or removes the given flags depending on add.
func (f Flags) Apply(other Flags, add bool) Flags {
	if add {
		return f.With(other)
	}

	return f.Without(other)
}

// Clone returns an independent copy of the bitset.
func (f Flags) Clone() Flags {
	return f
}

func (f Flags) Seen() bool      { return f.Has(FlagSeen) }
func (f Flags) Answered() bool  { return f.Has(FlagAnswered) }
func (f Flags) Flagged() bool   { return f.Has(FlagFlagged) }
func (f Flags) Deleted() bool   { return f.Has(FlagDeleted) }
func (f Flags) Draft() bool     { return f.Has(FlagDraft) }
func (f Flags) Recent() bool    { return f.Has(FlagRecent) }
func (f Flags) Junk() bool      { return f.Has(FlagJunk) }
func (f Flags) Forwarded() bool { return f.Has(FlagForwarded) }

func (f *Flags) SetSeen(on bool)      { *f = f.Apply(FlagSeen, on) }
func (f *Flags) SetAnswered(on bool)  { *f = f.Apply(FlagAnswered, on) }
func (f *Flags) SetFlagged(on bool)   { *f = f.Apply(FlagFlagged, on) }
func (f *Flags) SetDeleted(on bool)   { *f = f.Apply(FlagDeleted, on) }
func (f *Flags) SetDraft(on bool)     { *f = f.Apply(FlagDraft, on) }
func (f *Flags) SetRecent(on bool)    { *f = f.Apply(FlagRecent, on) }
func (f *Flags) SetJunk(on bool)      { *f = f.Apply(FlagJunk, on) }
func (f *Flags) SetForwarded(on bool) { *f = f.Apply(FlagForwarded, on) }

func (f Flags) String() string {
	var names []string

	for _, entry := range flagNames {
		if f.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}

	return "[" + strings.Join(names, " ") + "]"
}
