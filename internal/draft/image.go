package draft

type ImageMode string

const (
	ImageModeGenerate ImageMode = "generate"
	ImageModeUpload   ImageMode = "upload"
)

type ImageStyle string

const (
	StyleRealisticPhoto      ImageStyle = "realistic_photo"
	StyleDigitalIllustration ImageStyle = "digital_illustration"
	StyleAbstractArt         ImageStyle = "abstract_art"
	StyleMinimalist          ImageStyle = "minimalist"
	StyleThreeD              ImageStyle = "3d_render"
	StyleWatercolor          ImageStyle = "watercolor"
	StyleLineArt             ImageStyle = "line_art"
	StyleCorporate           ImageStyle = "corporate"
)

func (s ImageStyle) Valid() bool {
	switch s {
	case StyleRealisticPhoto, StyleDigitalIllustration, StyleAbstractArt,
		StyleMinimalist, StyleThreeD, StyleWatercolor, StyleLineArt, StyleCorporate:
		return true
	}
	return false
}

type ImageTemplate string

const (
	TemplateNone           ImageTemplate = "none"
	TemplateQuoteCard      ImageTemplate = "quote_card"
	TemplateSplitScreen    ImageTemplate = "split_screen"
	TemplateProfileFeature ImageTemplate = "profile_feature"
	TemplateDataViz        ImageTemplate = "data_viz"
	TemplateBeforeAfter    ImageTemplate = "before_after"
)

func (t ImageTemplate) Valid() bool {
	switch t {
	case TemplateNone, TemplateQuoteCard, TemplateSplitScreen,
		TemplateProfileFeature, TemplateDataViz, TemplateBeforeAfter:
		return true
	}
	return false
}

// UploadedImage is a validated user upload held in the session until
// the draft is persisted.
type UploadedImage struct {
	Data          []byte
	Filename      string
	ContentType   string
	Size          int64
	Width         int
	Height        int
	PreviewHandle string
}

// ImageConfig is the image half of a draft. Exactly one mode is active;
// the fields of the inactive mode are always zero. Mutating methods
// return the preview handle that became unreferenced, if any, so the
// caller can release the backing preview resource.
type ImageConfig struct {
	Mode     ImageMode
	Style    ImageStyle
	Template ImageTemplate
	Upload   *UploadedImage
	// GeneratedURL holds the reference returned by the image
	// generation service in generate mode.
	GeneratedURL string
}

func NewImageConfig() ImageConfig {
	return ImageConfig{
		Mode:     ImageModeGenerate,
		Style:    StyleRealisticPhoto,
		Template: TemplateNone,
	}
}

// SetMode switches between generate and upload, clearing the fields of
// the mode being left. Switching to the current mode is a no-op.
func (c *ImageConfig) SetMode(mode ImageMode) (released string) {
	if mode == c.Mode {
		return ""
	}
	switch mode {
	case ImageModeGenerate:
		released = c.clearUpload()
		c.Style = StyleRealisticPhoto
		c.Template = TemplateNone
	case ImageModeUpload:
		c.Style = ""
		c.Template = ""
		c.GeneratedURL = ""
	}
	c.Mode = mode
	return released
}

// SetStyle sets the generation style. Style and template are chosen
// independently.
func (c *ImageConfig) SetStyle(style ImageStyle) error {
	if !style.Valid() {
		return &ValidationError{Field: "imageStyle", Reason: "unknown style"}
	}
	if c.Mode != ImageModeGenerate {
		return &ValidationError{Field: "imageStyle", Reason: "style applies to generate mode only"}
	}
	c.Style = style
	return nil
}

func (c *ImageConfig) SetTemplate(template ImageTemplate) error {
	if !template.Valid() {
		return &ValidationError{Field: "imageTemplate", Reason: "unknown template"}
	}
	if c.Mode != ImageModeGenerate {
		return &ValidationError{Field: "imageTemplate", Reason: "template applies to generate mode only"}
	}
	c.Template = template
	return nil
}

// ApplyUpload stores a validated upload, switching to upload mode if
// needed. A prior upload's preview handle is returned for release.
func (c *ImageConfig) ApplyUpload(img *UploadedImage) (released string) {
	released = c.clearUpload()
	c.Mode = ImageModeUpload
	c.Style = ""
	c.Template = ""
	c.GeneratedURL = ""
	c.Upload = img
	return released
}

// RemoveUpload drops the uploaded image but stays in upload mode, ready
// for a new file.
func (c *ImageConfig) RemoveUpload() (released string, err error) {
	if c.Upload == nil {
		return "", ErrNoImage
	}
	return c.clearUpload(), nil
}

func (c *ImageConfig) clearUpload() (released string) {
	if c.Upload == nil {
		return ""
	}
	released = c.Upload.PreviewHandle
	c.Upload = nil
	return released
}
