package mail

import (
	"strings"

	"github.com/bradenaw/juniper/xslices"
	"github.com/emersion/go-imap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	KeywordJunk      = "$Junk"
	KeywordForwarded = "$Forwarded"
)

var keywordFlags = map[string]Flags{
	strings.ToLower(imap.SeenFlag):     FlagSeen,
	strings.ToLower(imap.AnsweredFlag): FlagAnswered,
	strings.ToLower(imap.FlaggedFlag):  FlagFlagged,
	strings.ToLower(imap.DeletedFlag):  FlagDeleted,
	strings.ToLower(imap.DraftFlag):    FlagDraft,
	strings.ToLower(imap.RecentFlag):   FlagRecent,
	strings.ToLower(KeywordJunk):       FlagJunk,
	strings.ToLower(KeywordForwarded):  FlagForwarded,
}

// KeywordSet is a case-insensitive set of IMAP-style flag names. The case of the first insertion is preserved.
type KeywordSet map[string]string

func NewKeywordSet(keywords ...string) KeywordSet {
	ks := make(KeywordSet)

	for _, keyword := range keywords {
		ks.add(keyword)
	}

	return ks
}

// KeywordsFromFlags renders the bitset as canonical IMAP flag names.
func KeywordsFromFlags(flags Flags) KeywordSet {
	ks := make(KeywordSet)

	for keyword, flag := range keywordFlags {
		if flags.Has(flag) {
			ks.add(imap.CanonicalFlag(keyword))
		}
	}

	if ks.Contains(KeywordJunk) {
		ks[strings.ToLower(KeywordJunk)] = KeywordJunk
	}

	if ks.Contains(KeywordForwarded) {
		ks[strings.ToLower(KeywordForwarded)] = KeywordForwarded
	}

	return ks
}

// Flags converts the known keywords to a bitset. Unknown keywords are ignored.
func (ks KeywordSet) Flags() Flags {
	var flags Flags

	for lower := range ks {
		flags |= keywordFlags[lower]
	}

	return flags
}

func (ks KeywordSet) Len() int {
	return len(ks)
}

// ToSlice returns the keywords sorted.
func (ks KeywordSet) ToSlice() []string {
	keywords := maps.Values(ks)

	slices.Sort(keywords)

	return keywords
}

func (ks KeywordSet) Contains(keyword string) bool {
	_, ok := ks[strings.ToLower(keyword)]
	return ok
}

func (ks KeywordSet) ContainsAny(keywords ...string) bool {
	return xslices.IndexFunc(keywords, func(k string) bool {
		return ks.Contains(k)
	}) >= 0
}

// Add returns a new set with the keywords added.
func (ks KeywordSet) Add(keywords ...string) KeywordSet {
	return ks.clone().add(keywords...)
}

// Remove returns a new set with the keywords removed.
func (ks KeywordSet) Remove(keywords ...string) KeywordSet {
	clone := ks.clone()

	for _, keyword := range keywords {
		delete(clone, strings.ToLower(keyword))
	}

	return clone
}

func (ks KeywordSet) Equals(other KeywordSet) bool {
	if ks.Len() != other.Len() {
		return false
	}

	for key := range ks {
		if _, ok := other[key]; !ok {
			return false
		}
	}

	return true
}

func (ks KeywordSet) add(keywords ...string) KeywordSet {
	for _, keyword := range keywords {
		lower := strings.ToLower(keyword)

		if _, ok := ks[lower]; ok {
			continue
		}

		ks[lower] = keyword
	}

	return ks
}

func (ks KeywordSet) clone() KeywordSet {
	return NewKeywordSet(ks.ToSlice()...)
}
