package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/pipeline"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Semantic search within the pages of one listing or client",
}

var searchListingCmd = &cobra.Command{
	Use:   "listing <url|id> <query...>",
	Short: "Search the chunks of one listing",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		scope := domain.ListingURLScope(args[0])
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			scope = domain.ListingScope(id)
		}
		runSearch(cmd, scope, args[1:])
	},
}

var searchClientCmd = &cobra.Command{
	Use:   "client <name|id> <query...>",
	Short: "Search the chunks of one client",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		scope := domain.ClientNameScope(args[0])
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			scope = domain.ClientScope(id)
		}
		runSearch(cmd, scope, args[1:])
	},
}

func init() {
	searchCmd.PersistentFlags().IntP("limit", "n", pipeline.DefaultSearchLimit, "maximum number of results")
	searchCmd.AddCommand(searchListingCmd, searchClientCmd)
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, scope domain.Scope, words []string) {
	ctx, cancel := commandContext()
	defer cancel()

	l, _, _, p, closeDB := bootstrap(ctx)
	defer closeDB()

	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(words, " ")

	results, err := p.Search(ctx, scope, query, limit)
	if err != nil {
		l.Fatal("searching", zap.Error(err), zap.String("query", query))
	}

	if len(results) == 0 {
		l.Info("nothing found", zap.String("query", query))
		return
	}

	for i, r := range results {
		fmt.Printf("--- Result %d ---\n", i+1)
		fmt.Printf("Similarity: %.4f\n", r.Similarity)
		fmt.Printf("URL: %s\n", r.URL)
		fmt.Printf("Content:\n%s\n\n", r.Content)
	}
}
