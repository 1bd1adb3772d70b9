package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/domain"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage clients",
}

var clientAddCmd = &cobra.Command{
	Use:   "add <name> <website>",
	Short: "Store a new client",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		l, config := setup()

		website, err := domain.NormalizeWebsite(args[1])
		if err != nil {
			l.Fatal("adding a client", zap.Error(err), zap.String("client", args[0]))
		}

		db, err := openStore(ctx, config, l)
		if err != nil {
			l.Fatal("opening the database", zap.Error(err))
		}
		defer db.Close()

		c, err := db.CreateClient(ctx, args[0], website)
		if err != nil {
			l.Fatal("adding a client", zap.Error(err), zap.String("client", args[0]))
		}

		l.Info("client added",
			zap.Int64("id", c.ID),
			zap.String("client", c.Name),
			zap.String("website", c.Website),
			zap.String("hint", fmt.Sprintf("run '%s parse clients' to fetch its website", app)),
		)
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored clients",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		ctx, cancel := commandContext()
		defer cancel()

		l, config := setup()
		db, err := openStore(ctx, config, l)
		if err != nil {
			l.Fatal("opening the database", zap.Error(err))
		}
		defer db.Close()

		clients, err := db.ListClients(ctx, false)
		if err != nil {
			l.Fatal("listing clients", zap.Error(err))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tWEBSITE\tIDENTITY")
		for _, c := range clients {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Website, domain.Deref(c.BusinessIdentity))
		}
		w.Flush()
	},
}

func init() {
	clientCmd.AddCommand(clientAddCmd, clientListCmd)
	rootCmd.AddCommand(clientCmd)
}
