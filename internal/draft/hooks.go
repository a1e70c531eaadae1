package draft

import (
	"strings"
	"time"
	"unicode/utf8"
)

// NoSelection marks a hook candidate set with no hook chosen yet.
const NoSelection = -1

// hookDisplayLimit caps the preview text shown for a hook candidate.
const hookDisplayLimit = 80

// HookCandidateSet holds the generated hook candidates and the user's
// current selection. Selection state survives body edits and image
// changes; only replacing the candidates resets it.
type HookCandidateSet struct {
	Candidates  []string
	Index       int
	GeneratedAt time.Time
}

func NewHookCandidateSet(candidates []string) HookCandidateSet {
	set := HookCandidateSet{
		Candidates: append([]string(nil), candidates...),
		Index:      NoSelection,
	}
	if len(candidates) > 0 {
		set.GeneratedAt = time.Now().UTC()
	}
	return set
}

// Replace swaps in a new candidate list and clears the selection.
// A previously selected index is meaningless against new candidates.
func (s *HookCandidateSet) Replace(candidates []string) {
	s.Candidates = append([]string(nil), candidates...)
	s.Index = NoSelection
	s.GeneratedAt = time.Now().UTC()
}

// Select chooses the candidate at i.
func (s *HookCandidateSet) Select(i int) error {
	if i < 0 || i >= len(s.Candidates) {
		return ErrHookIndexOutOfRange
	}
	s.Index = i
	return nil
}

// Next advances the selection. At the last candidate it stays put;
// with no selection yet it picks the first candidate.
func (s *HookCandidateSet) Next() {
	if len(s.Candidates) == 0 {
		return
	}
	if s.Index == NoSelection {
		s.Index = 0
		return
	}
	if s.Index < len(s.Candidates)-1 {
		s.Index++
	}
}

// Previous moves the selection back, stopping at the first candidate.
func (s *HookCandidateSet) Previous() {
	if len(s.Candidates) == 0 || s.Index == NoSelection {
		return
	}
	if s.Index > 0 {
		s.Index--
	}
}

// Selected returns the full text of the chosen hook.
func (s *HookCandidateSet) Selected() (string, bool) {
	if s.Index == NoSelection || s.Index >= len(s.Candidates) {
		return "", false
	}
	return s.Candidates[s.Index], true
}

// DisplayText returns the preview form of candidate i: the first
// paragraph, truncated to 80 runes with an ellipsis. Presentation
// only; the stored candidate text is untouched.
func (s *HookCandidateSet) DisplayText(i int) string {
	if i < 0 || i >= len(s.Candidates) {
		return ""
	}
	text := s.Candidates[i]
	if idx := strings.Index(text, "\n\n"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= hookDisplayLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:hookDisplayLimit]) + "…"
}
