// Package initcmder provides the init command for initializing a local
// .memvid directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/pkg/cliui"
	"github.com/papercomputeco/memvid/pkg/config"
	"github.com/papercomputeco/memvid/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .memvid/ directory in the current working directory.

Creates a local .memvid/ directory that takes precedence over the default
~/.memvid/ directory for configuration and the default memory, and writes
a config.toml for the chosen embedding preset.

Presets:
  hash      Offline hashing embedder, no service required (default)
  ollama    all-minilm served by a local Ollama
  openai    text-embedding-3-small (reads OPENAI_API_KEY)

Examples:
  memvid init
  memvid init --preset ollama`

const initShortDesc string = "Initialize a local .memvid/ directory"

type initCommander struct {
	preset string
	force  bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			return cmder.run(cwd)
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "hash", "Embedding preset ("+strings.Join(config.ValidPresetNames(), ", ")+")")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run(parent string) error {
	cfg, err := config.PresetConfig(c.preset)
	if err != nil {
		return err
	}

	dir, err := dotdir.NewManager().Init(parent)
	if err != nil {
		return fmt.Errorf("creating .memvid directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if _, err := os.Stat(cfger.GetTarget()); err == nil && !c.force {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("  %s Initialized .memvid directory: %s\n", cliui.SuccessMark, dir)
	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("embedding:"),
		cliui.ValueStyle.Render(cfg.Embedding.Provider+" "+cfg.Embedding.Model),
	)
	return nil
}
