package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/matching"
	"github.com/marcus302/aanvraagapp/internal/pipeline"
)

var matchCmd = &cobra.Command{
	Use:   "match [client]",
	Short: "Find the listings that suit a client",
	Long: `Filters every listing for the client and asks the AI backend to judge the
remaining ones. Without a client argument the client is picked interactively.
With --listing only that one pair is scored.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		l, config, db, p, closeDB := bootstrap(ctx)
		defer closeDB()

		var (
			client *domain.Client
			err    error
		)
		if len(args) == 1 {
			client, err = resolveClient(ctx, db, args[0])
		} else {
			client, err = selectClient(ctx, db)
		}
		if err != nil {
			l.Fatal("choosing a client", zap.Error(err))
		}
		l = l.With(zap.String("client", client.Name))

		if ref, _ := cmd.Flags().GetString("listing"); ref != "" {
			listing, err := resolveListing(ctx, db, ref)
			if err != nil {
				l.Fatal("finding the listing", zap.Error(err), zap.String("listing", ref))
			}

			result, err := p.ScoreMatch(ctx, client.ID, listing.ID)
			if err != nil {
				l.Fatal("scoring the match", zap.Error(err), zap.String("listing", listing.Website))
			}
			printMatch(listing, result)
			return
		}

		minQuality := config.Matching.MinimumQuality
		if flag, _ := cmd.Flags().GetString("min-quality"); flag != "" {
			minQuality = flag
		}
		quality := matching.QualityUnclear
		if minQuality != "" {
			q, ok := matching.ParseQuality(strings.ToUpper(minQuality))
			if !ok {
				l.Fatal("invalid minimum quality", zap.String("quality", minQuality))
			}
			quality = q
		}

		onlyOpen, _ := cmd.Flags().GetBool("open")
		instruments, _ := cmd.Flags().GetStringSlice("instrument")
		excludeFile := config.Matching.ExcludeFile
		if flag, _ := cmd.Flags().GetString("exclude-file"); flag != "" {
			excludeFile = flag
		}

		suitable, err := p.SuitableListings(ctx, client.ID, pipeline.SuitableOptions{
			OnlyOpen:         onlyOpen,
			Instruments:      instruments,
			ExcludeProviders: config.Matching.ExcludeProviders,
			ExcludeFile:      excludeFile,
			MinimumQuality:   quality,
		})
		if err != nil {
			l.Fatal("matching listings", zap.Error(err))
		}

		for _, f := range suitable.Filters {
			l.Debug("filter", zap.String("name", f.Name), zap.Bool("enabled", f.Enabled), zap.String("reason", f.Reason))
		}

		if len(suitable.Listings) == 0 {
			l.Info("exiting", zap.String("reason", "no suitable listings found"))
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "QUALITY\tLISTING\tWEBSITE")
		for _, c := range suitable.Listings {
			label := "ERROR: " + c.MatchError
			if c.Match != nil {
				label = string(c.Match.Quality)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", label, domain.Deref(c.Listing.Name), c.Listing.Website)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("listing", "", "score a single listing by id or website")
	matchCmd.Flags().Bool("open", false, "only consider listings that are open")
	matchCmd.Flags().StringSlice("instrument", nil, "only consider listings with this financial instrument (repeatable)")
	matchCmd.Flags().String("min-quality", "", "lowest match quality to report (UNCLEAR, INTERESTING, VERY_GOOD)")
	matchCmd.Flags().StringP("exclude-file", "e", "", "file with listings to skip; rejected listings are appended to it")
}

func printMatch(listing *domain.Listing, result *matching.MatchResult) {
	fmt.Printf("Listing: %s (%s)\n", domain.Deref(listing.Name), listing.Website)
	fmt.Printf("Match quality: %s\n", result.Quality)
	if result.ListingAmbiguous {
		fmt.Println("The listing covers several distinct opportunities and could not be judged.")
	}
	if result.Inconsistent {
		fmt.Println("Warning: the judgement contradicts a failed condition.")
	}

	for _, c := range result.Conditions {
		fmt.Printf("\n[%s] %s\n", c.Eval, c.Desc)
		if c.Reasoning != "" {
			fmt.Printf("  %s\n", strings.ReplaceAll(c.Reasoning, "\n", "\n  "))
		}
	}
}
