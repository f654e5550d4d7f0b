package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

const mailruDefaultBaseURL = "https://my.mail.ru"

var mailruHeaders = map[string]string{
	"User-Agent":       "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
	"Accept":           "application/json, text/javascript, */*; q=0.01",
	"Accept-Language":  "ru-RU,ru;q=0.8,en-US;q=0.5,en;q=0.3",
	"X-Requested-With": "XMLHttpRequest",
	"Referer":          "https://my.mail.ru/music/search/",
	"Sec-Fetch-Dest":   "empty",
	"Sec-Fetch-Mode":   "cors",
	"Sec-Fetch-Site":   "same-origin",
}

// flexInt decodes a JSON number or a quoted number; anything else decodes as 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// mailruTrack is one entry of the MusicData section.
type mailruTrack struct {
	Name          string   `json:"Name_Text_HTML"`
	Author        string   `json:"Author"`
	Album         string   `json:"Album"`
	BitRate       flexInt  `json:"BitRate"`
	Duration      string   `json:"Duration"`
	DurationSecs  *flexInt `json:"DurationInSeconds"`
	AlbumCoverURL string   `json:"AlbumCoverURL"`
	URL           string   `json:"URL"`
}

// MailRuProvider searches the my.mail.ru music catalog through its ajax endpoint.
//
// The response is a JSON array whose fourth element holds the "MusicData" list.
type MailRuProvider struct {
	api *APIClient
}

// NewMailRuProvider creates a [MailRuProvider] from config.
func NewMailRuProvider(cfg shared.MailRuConfig, client *http.Client) *MailRuProvider {
	base := cfg.BaseURL
	if base == "" {
		base = mailruDefaultBaseURL
	}

	api := NewAPIClient(MailRu, base, client, time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.RequestsPerSecond)
	for k, v := range mailruHeaders {
		api.SetHeader(k, v)
	}

	return &MailRuProvider{api: api}
}

func (p *MailRuProvider) Name() string { return MailRu }

func (p *MailRuProvider) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	if query == "" {
		return []models.SearchResult{}, nil
	}

	params := url.Values{}
	params.Set("xemail", "")
	params.Set("ajax_call", "1")
	params.Set("func_name", "music.search")
	params.Set("mna", "")
	params.Set("mnb", "")
	params.Set("arg_query", query)
	params.Set("arg_extended", "1")
	params.Set("arg_search_params", fmt.Sprintf(
		`{"music":{"limit":%d},"playlist":{"limit":50},"album":{"limit":10},"artist":{"limit":10}}`, limit))
	params.Set("arg_offset", "0")
	params.Set("arg_limit", "200")

	body, err := p.api.Get(ctx, "/cgi-bin/my/ajax", params)
	if err != nil {
		return nil, err
	}

	tracks, err := decodeMailRu(body)
	if err != nil {
		return nil, shared.NewExternalServiceError(MailRu, "decode response", err)
	}

	results := make([]models.SearchResult, 0, len(tracks))
	for i, t := range tracks {
		r, err := t.normalize()
		if err != nil {
			return nil, shared.NewExternalServiceError(MailRu, "decode response", fmt.Errorf("track %d: %w", i, err))
		}
		results = append(results, r)
	}
	return results, nil
}

// decodeMailRu extracts the MusicData list from the ajax envelope.
func decodeMailRu(body []byte) ([]mailruTrack, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected envelope: %w", err)
	}
	if len(envelope) < 4 {
		return nil, fmt.Errorf("unexpected envelope: %d elements", len(envelope))
	}

	var section struct {
		MusicData *[]mailruTrack `json:"MusicData"`
	}
	if err := json.Unmarshal(envelope[3], &section); err != nil {
		return nil, fmt.Errorf("unexpected music section: %w", err)
	}
	if section.MusicData == nil {
		return nil, fmt.Errorf("unexpected music section: MusicData missing")
	}

	return *section.MusicData, nil
}

// normalize maps a track onto a [models.SearchResult].
// Name_Text_HTML, URL and DurationInSeconds are required.
func (t mailruTrack) normalize() (models.SearchResult, error) {
	switch {
	case t.Name == "":
		return models.SearchResult{}, fmt.Errorf("missing Name_Text_HTML")
	case t.URL == "":
		return models.SearchResult{}, fmt.Errorf("missing URL")
	case t.DurationSecs == nil:
		return models.SearchResult{}, fmt.Errorf("missing DurationInSeconds")
	}

	u := t.URL
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}

	seconds := int(*t.DurationSecs)
	durationText := t.Duration
	if durationText == "" {
		durationText = shared.FormatDuration(seconds)
	}

	return models.SearchResult{
		Name:          html.UnescapeString(t.Name),
		Author:        html.UnescapeString(t.Author),
		Album:         html.UnescapeString(t.Album),
		Bitrate:       int(t.BitRate),
		DurationText:  durationText,
		Duration:      seconds,
		AlbumCoverURL: t.AlbumCoverURL,
		URL:           u,
	}, nil
}
