// Package statscmder provides the stats command.
package statscmder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/cmd/memvid/setup"
	"github.com/papercomputeco/memvid/pkg/cliui"
	"github.com/papercomputeco/memvid/pkg/config"
	"github.com/papercomputeco/memvid/pkg/retriever"
)

const statsLongDesc string = `Show statistics for a memory.

Loads the container and index and prints record, frame, and index counts.

Examples:
  memvid stats
  memvid stats --json --memory book`

const statsShortDesc string = "Show memory statistics"

var statsFlags = []string{
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCodec,
}

type statsCommander struct {
	memory string
	asJSON bool

	provider, target, model, codec string
	dims                           int

	stdout io.Writer
}

func NewStatsCmd() *cobra.Command {
	cmder := &statsCommander{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.stdout = cmd.OutOrStdout()
			env, err := setup.Load(cmd, statsFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.memory, "memory", "m", "", "Memory path (default: .memvid/memory)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print statistics as JSON")
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.model)
	config.AddIntFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dims)
	config.AddStringFlag(cmd, config.Flags, config.FlagCodec, &cmder.codec)

	return cmd
}

func (c *statsCommander) run(cmd *cobra.Command, env *setup.Env) error {
	paths, err := env.Paths(c.memory)
	if err != nil {
		return err
	}

	r, emb, err := env.Open(cmd.Context(), paths)
	if err != nil {
		return err
	}
	defer emb.Close()
	defer r.Close()

	st, err := r.Stats()
	if err != nil {
		return err
	}

	if c.asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	render(c.stdout, st)
	return nil
}

func render(w io.Writer, st retriever.Stats) {
	const width = 12
	fmt.Fprintln(w)
	cliui.KeyValue(w, width, "container", st.ContainerPath)
	cliui.KeyValue(w, width, "index", st.IndexBase)
	cliui.KeyValue(w, width, "build id", st.BuildID)
	cliui.KeyValue(w, width, "records", st.TotalRecords)
	cliui.KeyValue(w, width, "frames", st.TotalFrames)
	cliui.KeyValue(w, width, "index type", st.Index.Type)
	cliui.KeyValue(w, width, "metric", st.Index.Metric)
	cliui.KeyValue(w, width, "dimension", st.Index.Dimension)
	if st.Index.Model != "" {
		cliui.KeyValue(w, width, "model", st.Index.Model)
	}
	if st.Index.Codec != "" {
		cliui.KeyValue(w, width, "codec", st.Index.Codec)
	}
	fmt.Fprintln(w)
}
