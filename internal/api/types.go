package api

import (
	"time"

	"github.com/contentgen/contentgen-backend/internal/draft"
	"github.com/contentgen/contentgen-backend/internal/records"
)

type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDTO `json:"error"`
}

type CreateDraftRequest struct {
	Topic       string `json:"topic"`
	ContentType string `json:"contentType"`
	Tone        string `json:"tone"`
	Length      string `json:"length"`
	IncludeCTA  bool   `json:"includeCta"`
}

type UpdateDraftRequest struct {
	Topic       *string `json:"topic,omitempty"`
	Body        *string `json:"body,omitempty"`
	ContentType *string `json:"contentType,omitempty"`
	Tone        *string `json:"tone,omitempty"`
	Length      *string `json:"length,omitempty"`
	IncludeCTA  *bool   `json:"includeCta,omitempty"`
}

type SelectHookRequest struct {
	Index int `json:"index"`
}

type UpdateImageRequest struct {
	Mode     *string `json:"mode,omitempty"`
	Style    *string `json:"style,omitempty"`
	Template *string `json:"template,omitempty"`
}

type ScheduleRequest struct {
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type HookDTO struct {
	Text        string `json:"text"`
	DisplayText string `json:"displayText"`
}

type HooksDTO struct {
	Candidates    []HookDTO  `json:"candidates"`
	SelectedIndex int        `json:"selectedIndex"`
	GeneratedAt   *time.Time `json:"generatedAt,omitempty"`
}

type UploadDTO struct {
	Filename      string `json:"filename"`
	ContentType   string `json:"contentType"`
	Size          int64  `json:"size"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	PreviewHandle string `json:"previewHandle"`
}

type ImageDTO struct {
	Mode         string     `json:"mode"`
	Style        string     `json:"style,omitempty"`
	Template     string     `json:"template,omitempty"`
	GeneratedURL string     `json:"generatedUrl,omitempty"`
	Upload       *UploadDTO `json:"upload,omitempty"`
}

type DraftDTO struct {
	SessionID    string     `json:"sessionId"`
	Topic        string     `json:"topic"`
	ContentType  string     `json:"contentType"`
	Tone         string     `json:"tone"`
	Length       string     `json:"length"`
	IncludeCTA   bool       `json:"includeCta"`
	Body         string     `json:"body"`
	Hooks        HooksDTO   `json:"hooks"`
	Image        ImageDTO   `json:"image"`
	FinalContent string     `json:"finalContent"`
	Phase        string     `json:"phase"`
	Status       string     `json:"status"`
	PersistedID  string     `json:"persistedId,omitempty"`
	ScheduledAt  *time.Time `json:"scheduledAt,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func draftDTO(sessionID string, d *draft.PostDraft) DraftDTO {
	dto := DraftDTO{
		SessionID:    sessionID,
		Topic:        d.Topic,
		ContentType:  string(d.ContentType),
		Tone:         string(d.Tone),
		Length:       string(d.Length),
		IncludeCTA:   d.IncludeCTA,
		Body:         d.Body,
		FinalContent: d.FinalContent(),
		Phase:        string(d.Phase),
		Status:       string(d.Status),
		PersistedID:  d.PersistedID,
		ScheduledAt:  d.ScheduledAt,
		PublishedAt:  d.PublishedAt,
		UpdatedAt:    d.UpdatedAt,
	}

	dto.Hooks = HooksDTO{
		Candidates:    make([]HookDTO, len(d.Hooks.Candidates)),
		SelectedIndex: d.Hooks.Index,
	}
	for i, text := range d.Hooks.Candidates {
		dto.Hooks.Candidates[i] = HookDTO{
			Text:        text,
			DisplayText: d.Hooks.DisplayText(i),
		}
	}
	if !d.Hooks.GeneratedAt.IsZero() {
		t := d.Hooks.GeneratedAt
		dto.Hooks.GeneratedAt = &t
	}

	dto.Image = ImageDTO{
		Mode:         string(d.Image.Mode),
		Style:        string(d.Image.Style),
		Template:     string(d.Image.Template),
		GeneratedURL: d.Image.GeneratedURL,
	}
	if d.Image.Upload != nil {
		up := d.Image.Upload
		dto.Image.Upload = &UploadDTO{
			Filename:      up.Filename,
			ContentType:   up.ContentType,
			Size:          up.Size,
			Width:         up.Width,
			Height:        up.Height,
			PreviewHandle: up.PreviewHandle,
		}
	}
	return dto
}

type ContentDTO struct {
	ID                string     `json:"id"`
	Topic             string     `json:"topic"`
	ContentType       string     `json:"contentType"`
	Tone              string     `json:"tone"`
	Length            string     `json:"length"`
	IncludeCTA        bool       `json:"includeCta"`
	Hooks             []string   `json:"hooks"`
	SelectedHookIndex int        `json:"selectedHookIndex"`
	Body              string     `json:"body"`
	FinalContent      string     `json:"finalContent"`
	ImageMode         string     `json:"imageMode,omitempty"`
	ImageStyle        string     `json:"imageStyle,omitempty"`
	ImageTemplate     string     `json:"imageTemplate,omitempty"`
	ImagePath         string     `json:"imagePath,omitempty"`
	Status            string     `json:"status"`
	ScheduledAt       *time.Time `json:"scheduledAt,omitempty"`
	PublishedAt       *time.Time `json:"publishedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type UpdateContentRequest struct {
	Topic             *string    `json:"topic,omitempty"`
	Body              *string    `json:"body,omitempty"`
	SelectedHookIndex *int       `json:"selectedHookIndex,omitempty"`
	Status            *string    `json:"status,omitempty"`
	ScheduledAt       *time.Time `json:"scheduledAt,omitempty"`
}

type CompanyRequest struct {
	Name        string `json:"name"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
	Website     string `json:"website"`
}

type CompanyDTO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Industry    string    `json:"industry"`
	Description string    `json:"description"`
	Website     string    `json:"website"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CompetitorRequest struct {
	Name    string `json:"name"`
	Website string `json:"website"`
	Notes   string `json:"notes"`
}

type CompetitorDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Website   string    `json:"website"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type IntegrationRequest struct {
	Platform    string `json:"platform"`
	AccessToken string `json:"accessToken"`
}

type IntegrationDTO struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ProfileRequest struct {
	FullName string `json:"fullName"`
	Headline string `json:"headline"`
	Company  string `json:"company"`
	Timezone string `json:"timezone"`
}

type ProfileDTO struct {
	UserID    string    `json:"userId"`
	FullName  string    `json:"fullName"`
	Headline  string    `json:"headline"`
	Company   string    `json:"company"`
	Timezone  string    `json:"timezone"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DocumentDTO struct {
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func contentDTO(rec *records.ContentRecord, finalContent string) ContentDTO {
	return ContentDTO{
		ID:                rec.ID,
		Topic:             rec.Topic,
		ContentType:       rec.ContentType,
		Tone:              rec.Tone,
		Length:            rec.Length,
		IncludeCTA:        rec.IncludeCTA,
		Hooks:             rec.Hooks,
		SelectedHookIndex: rec.SelectedHookIndex,
		Body:              rec.Body,
		FinalContent:      finalContent,
		ImageMode:         rec.ImageMode,
		ImageStyle:        rec.ImageStyle,
		ImageTemplate:     rec.ImageTemplate,
		ImagePath:         rec.ImagePath,
		Status:            string(rec.Status),
		ScheduledAt:       rec.ScheduledAt,
		PublishedAt:       rec.PublishedAt,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}
