package repair

import (
	"net/url"
	"strings"

	"github.com/btraven00/linkmedic/internal/model"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
)

// Confidence of each reconstruction.
const (
	confidenceRenamedRepo   = 92
	confidenceRenamedDomain = 90
	confidenceDefaultBranch = 88
	confidenceRedirectSame  = 88
	confidenceDocsVersion   = 85
	confidenceBranchGuess   = 85
	confidenceRedirectOther = 82
	confidenceRepoRoot      = 80
)

// reconstruct proposes source-specific alternatives for a url that no longer
// serves what it should. The best one wins.
func reconstruct(in Input) (model.RepairCandidate, bool) {
	var candidates []model.RepairCandidate
	add := func(replacement string, s model.Strategy, confidence float64, reason string) {
		if replacement == "" || replacement == in.URL {
			return
		}
		candidates = append(candidates, model.NewCandidate(in.URL, replacement, s, confidence, reason))
	}

	if sp := in.Specialized; sp != nil && sp.SuggestedURL != "" {
		switch domains.Kind(sp.Kind) {
		case domains.KindCodeHosting:
			if hasIssuePrefix(sp, "repository moved") {
				add(sp.SuggestedURL, model.StrategyRenamedRepository, confidenceRenamedRepo, "repository was renamed or transferred")
			} else {
				add(sp.SuggestedURL, model.StrategyRebuildRepository, confidenceDefaultBranch, "points at the repository's default branch")
			}
		case domains.KindDocumentation:
			add(sp.SuggestedURL, model.StrategyDocsVersion, confidenceDocsVersion, "current documentation instead of a pinned version")
		case domains.KindSocial:
			add(sp.SuggestedURL, model.StrategyRenamedDomain, confidenceRenamedDomain, "platform moved to a new domain")
		}
	}

	if renamed, ok := domains.RenameDomain(in.URL); ok {
		add(renamed, model.StrategyRenamedDomain, confidenceRenamedDomain, "site moved to a new domain")
	}

	if domains.Classify(in.URL) == domains.KindDocumentation || strings.Contains(in.URL, "/docs/") {
		if unpinned, ok := domains.UnpinVersion(in.URL); ok {
			add(unpinned, model.StrategyDocsVersion, confidenceDocsVersion, "current documentation instead of a pinned version")
		}
	}

	if brokenPage(in) && !repositoryMissing(in) {
		if owner, repo, rest, ok := domains.Repository(in.URL); ok && rest != "" {
			host := hostOf(in.URL)
			for _, prefix := range []string{"tree/master/", "blob/master/"} {
				if strings.HasPrefix(rest, prefix) {
					fixed := strings.Replace(rest, "/master/", "/main/", 1)
					add("https://"+host+"/"+owner+"/"+repo+"/"+fixed, model.StrategyRebuildRepository, confidenceBranchGuess,
						"default branch renamed from master to main")
				}
			}
			add("https://"+host+"/"+owner+"/"+repo, model.StrategyRebuildRepository, confidenceRepoRoot,
				"path no longer exists; repository root")
		}
	}

	if v := in.Validation; v != nil && v.Status == model.StatusRedirect && v.FinalURL != "" && !domains.SameLocation(in.URL, v.FinalURL) && followable(in) {
		if sameSite(in.URL, v.FinalURL) {
			add(v.FinalURL, model.StrategyFollowRedirect, confidenceRedirectSame, "server redirects to this location")
		} else {
			add(v.FinalURL, model.StrategyFollowRedirect, confidenceRedirectOther, "server redirects to another site")
		}
	}

	if len(candidates) == 0 {
		return model.RepairCandidate{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Better(best) {
			best = c
		}
	}

	return best, true
}

func hasIssuePrefix(r *model.SpecializedResult, prefix string) bool {
	for _, issue := range r.Issues {
		if strings.HasPrefix(issue, prefix) {
			return true
		}
	}

	return false
}

// brokenPage is a 4xx on a url whose host still answers.
func brokenPage(in Input) bool {
	v := in.Validation
	return v != nil && v.Status == model.StatusBroken && v.IssueType == model.IssueHTTP4xx
}

func repositoryMissing(in Input) bool {
	return in.Specialized != nil && hasIssuePrefix(in.Specialized, "repository not found")
}

// followable rejects redirects that land somewhere unrelated: the site root
// of a deep link, or a page the relevance scorer wants replaced.
func followable(in Input) bool {
	if in.Relevance != nil && in.Relevance.SuggestedAction == model.ActionReplace {
		return false
	}

	from, err1 := url.Parse(in.URL)
	to, err2 := url.Parse(in.Validation.FinalURL)
	if err1 != nil || err2 != nil {
		return false
	}

	deep := strings.Trim(from.Path, "/") != ""
	root := strings.Trim(to.Path, "/") == ""

	return !(deep && root)
}

func sameSite(a, b string) bool {
	return strings.TrimPrefix(hostOf(a), "www.") == strings.TrimPrefix(hostOf(b), "www.")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return strings.ToLower(u.Host)
}
