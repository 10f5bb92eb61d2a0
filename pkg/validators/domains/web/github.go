package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

const defaultGitHubAPI = "https://api.github.com"

// CodeHostingValidator checks repositories through the GitHub REST API and
// falls back to a reachability check for other forges.
type CodeHostingValidator struct {
	baseValidator
	api   string
	token string
}

// NewCodeHostingValidator creates a code hosting validator. An empty api uses
// the public GitHub API.
func NewCodeHostingValidator(client *http.Client, api, token string) *CodeHostingValidator {
	if api == "" {
		api = defaultGitHubAPI
	}

	v := &CodeHostingValidator{
		baseValidator: newBaseValidator("code-hosting", domains.KindCodeHosting,
			"GitHub repositories via the REST API; GitLab, Bitbucket and Codeberg by reachability", client),
		api:   strings.TrimRight(api, "/"),
		token: token,
	}

	v.addPattern(`https://github.com/{owner}/{repo}[/...]`, "GitHub repository",
		"https://github.com/spf13/cobra", "https://github.com/golang/go/tree/master/src")
	v.addPattern(`https://gitlab.com/{group}/{project}`, "GitLab project",
		"https://gitlab.com/gitlab-org/gitlab")
	v.addPattern(`https://bitbucket.org/{workspace}/{repo}`, "Bitbucket repository")

	return v
}

// repository is the subset of the GitHub repository object we use.
type repository struct {
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	Description   string `json:"description"`
	Archived      bool   `json:"archived"`
	Disabled      bool   `json:"disabled"`
	DefaultBranch string `json:"default_branch"`
	Stars         int    `json:"stargazers_count"`
	PushedAt      string `json:"pushed_at"`
}

// Validate checks a code hosting url.
func (v *CodeHostingValidator) Validate(ctx context.Context, rawURL string) (*model.SpecializedResult, error) {
	result := v.newResult(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	owner, repo, rest, ok := domains.Repository(rawURL)
	if !ok || strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") != "github.com" {
		if _, err := v.reachability(ctx, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	headers := map[string]string{
		"Accept":               "application/vnd.github+json",
		"X-GitHub-Api-Version": "2022-11-28",
	}
	if v.token != "" {
		headers["Authorization"] = "Bearer " + v.token
	}

	var info repository
	status, err := v.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", v.api, owner, repo), headers, &info)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		result.Valid = false
		result.AddIssue("repository not found")
		result.Suggest("the repository was deleted, made private or never existed; search for a fork or mirror", "")
		return result, nil
	case http.StatusForbidden, http.StatusTooManyRequests:
		result.AddIssue("GitHub API rate limit reached; repository not verified")
		result.Suggest("set github_token to raise the rate limit", "")
		return result, nil
	default:
		return nil, fmt.Errorf("GitHub API returned status %d", status)
	}

	result.SetMeta("full_name", info.FullName)
	result.SetMeta("description", info.Description)
	result.SetMeta("default_branch", info.DefaultBranch)
	result.SetMeta("stars", strconv.Itoa(info.Stars))
	result.SetMeta("pushed_at", info.PushedAt)

	if info.Disabled {
		result.Valid = false
		result.AddIssue("repository disabled")
	}
	if info.Archived {
		result.AddIssue("repository archived")
		result.Suggest("the repository is read-only; check whether it has a maintained successor", "")
	}

	fullName := owner + "/" + repo
	if info.FullName != "" {
		fullName = info.FullName
	}

	fixedRest := rest
	if stale, ok := staleBranch(rest, info.DefaultBranch); ok {
		fixedRest = strings.Replace(rest, "/"+stale+"/", "/"+info.DefaultBranch+"/", 1)
		result.AddIssue(fmt.Sprintf("links to branch %q but the default branch is %q", stale, info.DefaultBranch))
	}

	if !strings.EqualFold(fullName, owner+"/"+repo) {
		moved := rebuild(u, fullName, fixedRest)
		result.AddIssue("repository moved; try " + moved)
		result.Suggest("update the link to the repository's new location", moved)
	} else if fixedRest != rest {
		result.Suggest("point the link at the default branch", rebuild(u, fullName, fixedRest))
	}

	return result, nil
}

// rebuild assembles a github.com url for fullName keeping the rest of the
// path and the query.
func rebuild(u *url.URL, fullName, rest string) string {
	out := url.URL{
		Scheme:   "https",
		Host:     "github.com",
		Path:     "/" + fullName,
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
	if rest != "" {
		out.Path += "/" + rest
	}

	return out.String()
}

// staleBranch reports a tree/blob path pinned to master when the repository
// has moved its default branch elsewhere.
func staleBranch(rest, defaultBranch string) (string, bool) {
	if defaultBranch == "" || defaultBranch == "master" {
		return "", false
	}
	if strings.HasPrefix(rest, "tree/master/") || strings.HasPrefix(rest, "blob/master/") {
		return "master", true
	}

	return "", false
}
