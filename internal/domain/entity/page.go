package entity

import (
	"encoding/base64"
	"time"
)

type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type UIElement struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	AriaLabel string `json:"aria_label,omitempty"`
	Role      string `json:"role,omitempty"`
	Selector  string `json:"selector"`
}

type Screenshot struct {
	Data       []byte
	Format     string
	Width      int
	Height     int
	URL        string
	CapturedAt time.Time
}

func (s *Screenshot) Base64() string {
	if s == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(s.Data)
}

// DataURL renders the screenshot for image message parts.
func (s *Screenshot) DataURL() string {
	if s == nil {
		return ""
	}
	format := s.Format
	if format == "" {
		format = "png"
	}
	return "data:image/" + format + ";base64," + s.Base64()
}
