package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

const largeImage = 5 << 20

// ImageValidator checks that an image url serves an image.
type ImageValidator struct {
	baseValidator
}

// NewImageValidator creates an image validator.
func NewImageValidator(client *http.Client) *ImageValidator {
	v := &ImageValidator{
		baseValidator: newBaseValidator("image", domains.KindImage,
			"Images: reachability, content type and size", client),
	}

	v.addPattern(`https://{host}/{path}.{png,jpg,jpeg,gif,svg,webp,avif}`, "image file",
		"https://go.dev/images/gophers/ladder.svg")

	return v
}

// Validate checks an image url.
func (v *ImageValidator) Validate(ctx context.Context, rawURL string) (*model.SpecializedResult, error) {
	result := v.newResult(rawURL)

	a, err := v.reachability(ctx, result)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, nil
	}

	ct := strings.ToLower(a.contentType)
	result.SetMeta("content_type", a.contentType)
	if !strings.HasPrefix(ct, "image/") {
		result.Valid = false
		result.AddIssue(fmt.Sprintf("not an image (content type %q)", a.contentType))
		return result, nil
	}

	if a.contentLength > largeImage {
		result.AddIssue(fmt.Sprintf("image is large (%d KiB)", a.contentLength>>10))
		result.Suggest("consider a smaller rendition", "")
	}

	return result, nil
}
