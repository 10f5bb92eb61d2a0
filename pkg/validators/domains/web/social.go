package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

// linkedInDenied is the non-standard status LinkedIn answers crawlers with.
const linkedInDenied = 999

// SocialValidator handles social platforms, most of which hide content from
// anonymous clients.
type SocialValidator struct {
	baseValidator
}

// NewSocialValidator creates a social platform validator.
func NewSocialValidator(client *http.Client) *SocialValidator {
	v := &SocialValidator{
		baseValidator: newBaseValidator("social", domains.KindSocial,
			"Social platforms: renamed domains and login walls", client),
	}

	v.addPattern(`https://twitter.com/{user}`, "renamed to x.com", "https://twitter.com/golang")
	v.addPattern(`https://www.linkedin.com/in/{profile}`, "login-walled profile")

	return v
}

// Validate checks a social url.
func (v *SocialValidator) Validate(ctx context.Context, rawURL string) (*model.SpecializedResult, error) {
	result := v.newResult(rawURL)

	if renamed, ok := domains.RenameDomain(rawURL); ok {
		result.AddIssue("domain renamed; try " + renamed)
		result.Suggest("update the link to the platform's current domain", renamed)
		return result, nil
	}

	a, err := v.request(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	switch {
	case a.statusCode == linkedInDenied || a.statusCode == http.StatusUnauthorized || a.statusCode == http.StatusForbidden:
		result.AddIssue("profile requires login; validity not verifiable")
	case a.statusCode == http.StatusNotFound || a.statusCode == http.StatusGone:
		result.Valid = false
		result.AddIssue("profile or post not found")
	case !a.ok():
		result.Valid = false
		result.AddIssue(fmt.Sprintf("social page returns HTTP %d", a.statusCode))
	}

	return result, nil
}
