package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/btraven00/linkmedic/internal/artifacts"
	"github.com/btraven00/linkmedic/pkg/validators/domains"
	"github.com/btraven00/linkmedic/pkg/validators/domains/web"
)

var (
	showPatterns bool
	kindFilter   string
)

// domainsCmd represents the domains command
var domainsCmd = &cobra.Command{
	Use:   "domains [url...]",
	Short: "List the specialized validators and which urls they handle",
	Long: `The domains command lists the specialized validators that run after the
generic check: code hosting, video, documentation, social and image links.

Given urls, it prints which validator each one would be routed to.

Examples:
  linkmedic domains                                  # list all validators
  linkmedic domains --kind video --patterns          # one validator with its patterns
  linkmedic domains https://github.com/org/repo      # classify a url
  linkmedic domains --output json                    # machine-readable`,
	RunE: runDomains,
}

func init() {
	rootCmd.AddCommand(domainsCmd)

	domainsCmd.Flags().BoolVar(&showPatterns, "patterns", false, "show recognition patterns for validators")
	domainsCmd.Flags().StringVar(&kindFilter, "kind", "", "only show the validator for this kind")
}

type classification struct {
	URL       string       `json:"url"`
	Kind      domains.Kind `json:"kind"`
	Validator string       `json:"validator,omitempty"`
}

func runDomains(cmd *cobra.Command, args []string) error {
	set := web.NewSet(web.Options{Timeout: cfg.Timeout(), Logger: logger})
	w := cmd.OutOrStdout()

	if len(args) > 0 {
		return outputClassified(w, classify(set, args))
	}

	info := set.ListValidators()
	if kindFilter != "" {
		info = filterKind(info, domains.Kind(kindFilter))
		if len(info) == 0 {
			return usageError{fmt.Errorf("no validator for kind %q (known: %s)", kindFilter, knownKinds())}
		}
	}

	if output == "json" {
		return artifacts.NewJSONEncoder(w).Encode(struct {
			Validators []domains.ValidatorInfo `json:"validators"`
			Count      int                     `json:"count"`
		}{info, len(info)})
	}

	return showValidators(w, info)
}

func classify(set *domains.Set, urls []string) []classification {
	out := make([]classification, 0, len(urls))
	for _, u := range urls {
		c := classification{URL: u, Kind: domains.Classify(u)}
		if v := set.For(c.Kind); v != nil {
			c.Validator = v.Name()
		}
		out = append(out, c)
	}

	return out
}

func filterKind(info []domains.ValidatorInfo, kind domains.Kind) []domains.ValidatorInfo {
	var out []domains.ValidatorInfo
	for _, v := range info {
		if v.Kind == kind {
			out = append(out, v)
		}
	}

	return out
}

func knownKinds() string {
	kinds := make([]string, 0, len(domains.Kinds()))
	for _, k := range domains.Kinds() {
		kinds = append(kinds, string(k))
	}

	return strings.Join(kinds, ", ")
}

func outputClassified(w io.Writer, cs []classification) error {
	if output == "json" {
		return artifacts.NewJSONEncoder(w).Encode(cs)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tKIND\tVALIDATOR")
	for _, c := range cs {
		kind, name := string(c.Kind), c.Validator
		if kind == "" {
			kind, name = "-", "generic only"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.URL, kind, name)
	}

	return tw.Flush()
}

func showValidators(w io.Writer, info []domains.ValidatorInfo) error {
	fmt.Fprintf(w, "🔬 Specialized validators (%d):\n\n", len(info))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "   NAME\tKIND\tDESCRIPTION")
	fmt.Fprintln(tw, "   ----\t----\t-----------")
	for _, v := range info {
		desc := v.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		fmt.Fprintf(tw, "   %s\t%s\t%s\n", v.Name, v.Kind, desc)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !showPatterns {
		return nil
	}

	fmt.Fprintln(w, "\n   Patterns:")
	for _, v := range info {
		if len(v.Patterns) == 0 {
			continue
		}
		fmt.Fprintf(w, "   • %s:\n", v.Name)
		for _, p := range v.Patterns {
			fmt.Fprintf(w, "     - %s (%s)\n", p.Pattern, p.Description)
			if len(p.Examples) > 0 {
				fmt.Fprintf(w, "       Example: %s\n", p.Examples[0])
			}
		}
	}

	return nil
}
