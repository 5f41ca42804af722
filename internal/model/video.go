package model

// Format is a candidate rendition reported by the fetcher, trimmed for UI display.
type Format struct {
	FormatNote string `json:"format_note"`
	Ext        string `json:"ext"`
	FileSize   *int64 `json:"filesize,omitempty"`
}

// VideoInfo is the metadata-only view of a media item.
type VideoInfo struct {
	Title       string   `json:"title"`
	Platform    string   `json:"platform"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Duration    float64  `json:"duration"`
	OriginalURL string   `json:"original_url"`
	Formats     []Format `json:"formats"`
}

// MaxDisplayFormats caps the format list returned to clients.
const MaxDisplayFormats = 5

// VideoInfoRequest is the body of POST /api/video-info.
type VideoInfoRequest struct {
	URL string `json:"url"`
}
