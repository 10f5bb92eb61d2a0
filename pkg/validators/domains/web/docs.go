package web

import (
	"context"
	"net/http"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

// DocsValidator flags documentation pinned to an old version.
type DocsValidator struct {
	baseValidator
}

// NewDocsValidator creates a documentation validator.
func NewDocsValidator(client *http.Client) *DocsValidator {
	v := &DocsValidator{
		baseValidator: newBaseValidator("documentation", domains.KindDocumentation,
			"Documentation sites: reachability and pinned version segments", client),
	}

	v.addPattern(`https://docs.{site}/...`, "documentation host", "https://docs.python.org/2.7/library/os.html")
	v.addPattern(`https://{project}.readthedocs.io/en/{version}/...`, "Read the Docs project",
		"https://requests.readthedocs.io/en/v2.9/")
	v.addPattern(`https://{host}/docs/{version}/...`, "versioned docs path")

	return v
}

// Validate checks a documentation url.
func (v *DocsValidator) Validate(ctx context.Context, rawURL string) (*model.SpecializedResult, error) {
	result := v.newResult(rawURL)

	if _, err := v.reachability(ctx, result); err != nil {
		return nil, err
	}

	if unpinned, ok := domains.UnpinVersion(rawURL); ok {
		result.AddIssue("links to a pinned version")
		result.Suggest("link to the current documentation instead: "+unpinned, unpinned)
	}

	return result, nil
}
