package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

const (
	defaultYouTubeOEmbed = "https://www.youtube.com/oembed"
	defaultVimeoOEmbed   = "https://vimeo.com/api/oembed.json"
)

// VideoValidator asks the hosting platform's oEmbed endpoint about a video.
type VideoValidator struct {
	baseValidator
	youtube string
	vimeo   string
}

// NewVideoValidator creates a video validator; empty endpoints use the
// public ones.
func NewVideoValidator(client *http.Client, youtube, vimeo string) *VideoValidator {
	if youtube == "" {
		youtube = defaultYouTubeOEmbed
	}
	if vimeo == "" {
		vimeo = defaultVimeoOEmbed
	}

	v := &VideoValidator{
		baseValidator: newBaseValidator("video", domains.KindVideo,
			"YouTube and Vimeo videos via oEmbed", client),
		youtube: youtube,
		vimeo:   vimeo,
	}

	v.addPattern(`https://www.youtube.com/watch?v={id}`, "YouTube video",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://youtu.be/dQw4w9WgXcQ")
	v.addPattern(`https://vimeo.com/{id}`, "Vimeo video", "https://vimeo.com/76979871")

	return v
}

type oembed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ProviderName string `json:"provider_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Validate checks a video url.
func (v *VideoValidator) Validate(ctx context.Context, rawURL string) (*model.SpecializedResult, error) {
	result := v.newResult(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	endpoint := v.youtube
	if strings.Contains(strings.ToLower(u.Hostname()), "vimeo") {
		endpoint = v.vimeo
	}

	var info oembed
	status, err := v.getJSON(ctx, endpoint+"?format=json&url="+url.QueryEscape(rawURL), nil, &info)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		result.SetMeta("title", info.Title)
		result.SetMeta("author", info.AuthorName)
		result.SetMeta("provider", info.ProviderName)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		result.Valid = false
		result.AddIssue("video is private or embedding disabled")
	case status == http.StatusNotFound || status == http.StatusBadRequest:
		result.Valid = false
		result.AddIssue("video unavailable")
		result.Suggest("the video was removed; look for a re-upload or an archived copy", "")
	default:
		return nil, fmt.Errorf("oEmbed endpoint returned status %d", status)
	}

	return result, nil
}
