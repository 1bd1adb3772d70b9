package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/domain"
)

var parseCmd = &cobra.Command{
	Use:   "parse <listings|clients>",
	Short: "Fetch, extract and embed listings or clients",
	Long: `Runs every pipeline stage for the selected owners: webpage conversion,
field extraction and chunk embedding. Without --all only owners without a
webpage are picked. With --all every owner is visited and completed stages
are skipped, so interrupted owners are resumed.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"listings", "clients"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()

		kind, err := domain.ParseOwnerKind(args[0])
		cobra.CheckErr(err)

		l, _, _, p, closeDB := bootstrap(ctx)
		defer closeDB()

		all, _ := cmd.Flags().GetBool("all")
		id, _ := cmd.Flags().GetInt64("id")

		var owners []domain.Owner
		if id > 0 {
			owners = []domain.Owner{{Kind: kind, ID: id}}
		} else {
			owners, err = p.PendingOwners(ctx, kind, all)
			if err != nil {
				l.Fatal("collecting owners to parse", zap.Error(err))
			}
		}

		if len(owners) == 0 {
			l.Info("exiting", zap.String("reason", fmt.Sprintf("no %s to parse", args[0])))
			return
		}

		start := time.Now()
		l.Info("parsing", zap.String("kind", string(kind)), zap.Int("count", len(owners)))

		results := p.RunAll(ctx, owners)

		var failed, skipped, chunks int
		for _, r := range results {
			chunks += r.Chunks
			if r.Err == nil {
				continue
			}
			var pv *domain.PreconditionViolation
			if errors.As(r.Err, &pv) {
				skipped++
				continue
			}
			failed++
			l.Warn("owner failed", zap.Stringer("owner", r.Owner), zap.String("job", r.ID), zap.Error(r.Err))
		}

		l.Info("parse finished",
			zap.Int("processed", len(results)),
			zap.Int("skipped", skipped),
			zap.Int("failed", failed),
			zap.Int("chunks", chunks),
			zap.Duration("took", time.Since(start)),
		)

		if ctx.Err() != nil {
			l.Warn("parse interrupted", zap.Int("not started", len(owners)-len(results)))
		}
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("all", false, "visit every owner and resume unfinished ones")
	parseCmd.Flags().Int64("id", 0, "parse a single owner by id")
}
