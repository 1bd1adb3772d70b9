package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/fetch"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a website through its sitemaps and print the pages found",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		l, config := setup()

		fetcher := fetch.New(fetch.Config{
			UserAgent:  config.Fetch.UserAgent,
			Timeout:    config.Fetch.Timeout,
			CrawlDelay: config.Fetch.CrawlDelay,
		}, l)

		result, err := fetcher.Crawl(ctx, args[0])
		if err != nil {
			l.Fatal("crawling", zap.Error(err), zap.String("url", args[0]))
		}

		if tree, _ := cmd.Flags().GetBool("tree"); tree {
			fmt.Print(fetch.BuildHierarchy(result.URLs(), result.BaseURL).String())
			return
		}

		for _, page := range result.Pages {
			if page.Markdown == nil {
				fmt.Printf("%s (failed)\n", page.URL)
				continue
			}
			fmt.Printf("%s (%d bytes of markdown)\n", page.URL, len(*page.Markdown))
		}
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().Bool("tree", false, "print the discovered pages as a path tree")
}
