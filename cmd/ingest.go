package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/provider"
	_ "github.com/marcus302/aanvraagapp/internal/provider/rvo"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <provider>",
	Short: "Ingest the listing catalog of a funding provider",
	Long: fmt.Sprintf("Walks the provider catalog and stores every new listing.\nAvailable providers: %s",
		strings.Join(provider.Names(), ", ")),
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		l, config := setup()

		autoApprove, _ := cmd.Flags().GetBool("auto-approve")
		if err := confirm(fmt.Sprintf("Ingest all listings of %s?", args[0]), autoApprove); err != nil {
			l.Info("exiting", zap.String("reason", err.Error()))
			return
		}

		db, err := openStore(ctx, config, l)
		if err != nil {
			l.Fatal("opening the database", zap.Error(err))
		}
		defer db.Close()

		summary, err := provider.Run(ctx, args[0], provider.Deps{Repo: db, Logger: l})
		if summary != nil {
			l.Info("ingest summary", summary.Fields()...)
		}
		if err != nil {
			l.Fatal("ingest failed", zap.String("provider", args[0]), zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation")
}
