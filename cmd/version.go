package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus302/aanvraagapp/internal/provider"
)

// Set with -ldflags "-X github.com/marcus302/aanvraagapp/cmd.version=...".
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the registered providers",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s %s (%s %s/%s)\n", app, version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("providers: %s\n", strings.Join(provider.Names(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
