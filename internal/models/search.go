package models

// SearchResult is the provider-agnostic shape every search adapter produces.
//
// Name, Duration, DurationText and URL are always set; the rest is best effort.
type SearchResult struct {
	Name          string `json:"name"`
	Author        string `json:"author,omitempty"`
	Album         string `json:"album,omitempty"`
	Bitrate       int    `json:"bitrate,omitempty"`
	DurationText  string `json:"duration_text"`
	Duration      int    `json:"duration"`
	AlbumCoverURL string `json:"album_cover_url,omitempty"`
	URL           string `json:"url"`
}
