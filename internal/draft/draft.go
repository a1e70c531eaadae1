// Package draft holds the in-memory post draft aggregate: the draft
// state, its hook candidates, and the image configuration. Drafts live
// in editing sessions managed by Manager and are only written to the
// record store when the user saves, schedules, or publishes.
package draft

import "time"

type ContentType string

const (
	ContentEngagement    ContentType = "engagement"
	ContentEducational   ContentType = "educational"
	ContentLeadMagnet    ContentType = "lead-magnet"
	ContentCompanyUpdate ContentType = "company-update"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentEngagement, ContentEducational, ContentLeadMagnet, ContentCompanyUpdate:
		return true
	}
	return false
}

type Tone string

const (
	ToneProfessional  Tone = "professional"
	ToneCasual        Tone = "casual"
	ToneThoughtLeader Tone = "thought-leader"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneProfessional, ToneCasual, ToneThoughtLeader:
		return true
	}
	return false
}

type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

func (l Length) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// Status is the publication state of the draft's persisted record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

// Phase tracks which generation operation, if any, is in flight.
// All phases other than PhaseIdle block further generation and
// persistence triggers.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseGenerating       Phase = "generating"
	PhaseRegeneratingText Phase = "regeneratingText"
	PhaseRegeneratingImg  Phase = "regeneratingImage"
	PhaseRegeneratingAll  Phase = "regeneratingAll"
)

// Busy reports whether the phase blocks mutating operations.
func (p Phase) Busy() bool {
	switch p {
	case PhaseGenerating, PhaseRegeneratingText, PhaseRegeneratingImg, PhaseRegeneratingAll:
		return true
	}
	return false
}

// PostDraft is the working state of one post being composed.
type PostDraft struct {
	Topic       string
	ContentType ContentType
	Tone        Tone
	Length      Length
	IncludeCTA  bool

	Body  string
	Hooks HookCandidateSet
	Image ImageConfig

	Status      Status
	Phase       Phase
	PersistedID string
	ScheduledAt *time.Time
	PublishedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPostDraft(topic string, contentType ContentType, tone Tone, length Length, includeCTA bool) *PostDraft {
	now := time.Now().UTC()
	return &PostDraft{
		Topic:       topic,
		ContentType: contentType,
		Tone:        tone,
		Length:      length,
		IncludeCTA:  includeCTA,
		Hooks:       NewHookCandidateSet(nil),
		Image:       NewImageConfig(),
		Status:      StatusDraft,
		Phase:       PhaseIdle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// FinalContent composes the selected hook and the body. It is derived
// on demand and never stored; the hook and body remain separately
// editable until publication.
func (d *PostDraft) FinalContent() string {
	hook, ok := d.Hooks.Selected()
	if !ok {
		return d.Body
	}
	if d.Body == "" {
		return hook
	}
	return hook + "\n\n" + d.Body
}

func (d *PostDraft) Touch() {
	d.UpdatedAt = time.Now().UTC()
}
