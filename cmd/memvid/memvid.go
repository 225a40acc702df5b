// Package memvidcmder
package memvidcmder

import (
	"github.com/spf13/cobra"

	buildcmder "github.com/papercomputeco/memvid/cmd/memvid/build"
	configcmder "github.com/papercomputeco/memvid/cmd/memvid/config"
	getcmder "github.com/papercomputeco/memvid/cmd/memvid/get"
	initcmder "github.com/papercomputeco/memvid/cmd/memvid/init"
	searchcmder "github.com/papercomputeco/memvid/cmd/memvid/search"
	servecmder "github.com/papercomputeco/memvid/cmd/memvid/serve"
	statscmder "github.com/papercomputeco/memvid/cmd/memvid/stats"
	versioncmder "github.com/papercomputeco/memvid/cmd/version"
)

const memvidLongDesc string = `Memvid stores text as frames of a video-like container and
retrieves it by semantic search.

Build and query a memory using:
  memvid init          Create a .memvid/ directory and default config
  memvid build         Chunk, embed, and encode text into a memory
  memvid search        Search a memory
  memvid get           Print a single record
  memvid stats         Show memory statistics
  memvid serve         Run the query server (REST and MCP)`

const memvidShortDesc string = "Memvid - video-frame text memory"

func NewMemvidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "memvid",
		Short:         memvidShortDesc,
		Long:          memvidLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .memvid/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(buildcmder.NewBuildCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(getcmder.NewGetCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
