package draft

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

const (
	// MaxImageBytes is the upload size ceiling (10 MiB).
	MaxImageBytes = 10 << 20
	// MinImageDimension applies to both width and height after decode.
	MinImageDimension = 400
)

var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/jpg":  {},
	"image/gif":  {},
	"image/webp": {},
}

// ValidateUpload checks an uploaded file against the image constraints
// and returns the populated UploadedImage. Checks run cheapest first:
// declared type, byte size, then decode. Dimensions come from the
// decoded header, never from client metadata.
func ValidateUpload(data []byte, filename, contentType string) (*UploadedImage, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	if _, ok := allowedImageTypes[ct]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImageFormat, contentType)
	}

	if int64(len(data)) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	var width, height int
	var err error
	if ct == "image/webp" {
		width, height, err = webpDimensions(data)
	} else {
		var cfg image.Config
		cfg, _, err = image.DecodeConfig(bytes.NewReader(data))
		width, height = cfg.Width, cfg.Height
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	if width < MinImageDimension || height < MinImageDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooSmall, width, height)
	}

	return &UploadedImage{
		Data:        data,
		Filename:    filename,
		ContentType: ct,
		Size:        int64(len(data)),
		Width:       width,
		Height:      height,
	}, nil
}

// webpDimensions reads the dimensions from a WebP header. The stdlib
// has no webp decoder, so the RIFF container is parsed directly; the
// three chunk layouts (lossy VP8, lossless VP8L, extended VP8X) encode
// dimensions differently.
func webpDimensions(data []byte) (int, int, error) {
	if len(data) < 30 ||
		!bytes.Equal(data[0:4], []byte("RIFF")) ||
		!bytes.Equal(data[8:12], []byte("WEBP")) {
		return 0, 0, fmt.Errorf("not a webp file")
	}

	switch {
	case bytes.Equal(data[12:16], []byte("VP8 ")):
		// Lossy: keyframe start code then 14-bit dimensions.
		if len(data) < 30 || data[23] != 0x9d || data[24] != 0x01 || data[25] != 0x2a {
			return 0, 0, fmt.Errorf("malformed VP8 chunk")
		}
		w := int(binary.LittleEndian.Uint16(data[26:28]) & 0x3fff)
		h := int(binary.LittleEndian.Uint16(data[28:30]) & 0x3fff)
		return w, h, nil

	case bytes.Equal(data[12:16], []byte("VP8L")):
		if len(data) < 25 || data[20] != 0x2f {
			return 0, 0, fmt.Errorf("malformed VP8L chunk")
		}
		b := data[21:25]
		w := 1 + (int(b[0]) | int(b[1]&0x3f)<<8)
		h := 1 + (int(b[1]>>6) | int(b[2])<<2 | int(b[3]&0x0f)<<10)
		return w, h, nil

	case bytes.Equal(data[12:16], []byte("VP8X")):
		if len(data) < 30 {
			return 0, 0, fmt.Errorf("malformed VP8X chunk")
		}
		w := 1 + (int(data[24]) | int(data[25])<<8 | int(data[26])<<16)
		h := 1 + (int(data[27]) | int(data[28])<<8 | int(data[29])<<16)
		return w, h, nil
	}

	return 0, 0, fmt.Errorf("unknown webp chunk type")
}
