package domain

import (
	"fmt"
	"net/http"
	"strings"
)

// Listing holds the property details entered by the user. Fields are passed
// to the prompt templates verbatim; empty values stay empty.
type Listing struct {
	Price    string `json:"price"`
	Location string `json:"location"`
	Features string `json:"features"`
}

// Image is one uploaded photo, in the order the user supplied it.
type Image struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// Supported image MIME types.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeWebP = "image/webp"
)

// NewImage sniffs the MIME type of data and returns an Image.
// Unsupported types are not rejected here; see Image.Validate.
func NewImage(name string, data []byte) Image {
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return Image{Name: name, MIMEType: mimeType, Data: data}
}

// Validate reports whether the image can be sent to the model.
func (img Image) Validate() error {
	if len(img.Data) == 0 {
		return fmt.Errorf("image %q is empty", img.Name)
	}
	switch img.MIMEType {
	case MIMETypeJPEG, MIMETypePNG, MIMETypeWebP:
		return nil
	}
	return fmt.Errorf("image %q has unsupported type %q", img.Name, img.MIMEType)
}

// Model represents an available LLM model.
type Model struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Provider         string   `json:"provider"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	SupportedActions []string `json:"supported_actions,omitempty"`
}
