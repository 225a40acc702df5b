// Package configcmder provides the config command for managing persistent
// memvid configuration stored in the .memvid/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/pkg/cliui"
	"github.com/papercomputeco/memvid/pkg/config"
)

const configLongDesc string = `Manage persistent memvid configuration.

Configuration is stored as config.toml in the .memvid/ directory and provides
default values for command flags. CLI flags and MEMVID_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  index.type, index.metric, index.nlist, index.nprobe,
  codec.type, codec.error_correction, codec.box_size,
  container.compression,
  build.chunk_size, build.overlap, build.records_per_frame, build.workers,
  build.queue_size,
  retrieval.top_k, retrieval.max_workers, retrieval.cache_size,
  retrieval.negative_ttl, retrieval.timeout, retrieval.prefetch_frames,
  api.listen

Use subcommands to get, set, or list configuration values:
  memvid config set <key> <value>    Set a configuration value
  memvid config get <key>            Get a configuration value
  memvid config list                 List all configuration values

Examples:
  memvid config set embedding.provider ollama
  memvid config set retrieval.timeout 5s
  memvid config get build.chunk_size
  memvid config list`

const configShortDesc string = "Manage persistent memvid configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(cmd *cobra.Command, target string) {
	if target != "" {
		cmd.Printf("\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	cmd.Printf("\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
