// Package buildcmder provides the build command, which chunks, embeds, and
// encodes text into a memory.
package buildcmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/cmd/memvid/setup"
	"github.com/papercomputeco/memvid/pkg/builder"
	"github.com/papercomputeco/memvid/pkg/cliui"
	"github.com/papercomputeco/memvid/pkg/config"
	"github.com/papercomputeco/memvid/pkg/record"
)

const buildLongDesc string = `Build a memory from text files.

Each file is split into overlapping chunks, every chunk is embedded, and
chunks are encoded into frames of a container file. The vector index is
written next to the container. Reads standard input when no files are
given or a file is "-".

Without --memory the memory is written to the .memvid/ directory.

Examples:
  memvid build notes.txt docs/*.md
  cat book.txt | memvid build --memory book --chunk-size 800 --overlap 100
  memvid build --codec raw --compression lz4 notes.txt`

const buildShortDesc string = "Build a memory from text"

var buildFlags = []string{
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagIndexType,
	config.FlagIndexMetric,
	config.FlagNList,
	config.FlagNProbe,
	config.FlagCodec,
	config.FlagCompression,
	config.FlagChunkSize,
	config.FlagOverlap,
	config.FlagPerFrame,
	config.FlagBuildWorkers,
}

type buildCommander struct {
	memory string
	asJSON bool

	flagStrings map[string]*string
	flagInts    map[string]*int

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func NewBuildCmd() *cobra.Command {
	cmder := &buildCommander{
		flagStrings: map[string]*string{},
		flagInts:    map[string]*int{},
	}

	cmd := &cobra.Command{
		Use:   "build [files...]",
		Short: buildShortDesc,
		Long:  buildLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.stdin, cmder.stdout, cmder.stderr = cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()
			env, err := setup.Load(cmd, buildFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.memory, "memory", "m", "", "Memory path (default: .memvid/memory)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the build summary as JSON")

	for _, key := range []string{
		config.FlagEmbeddingProv, config.FlagEmbeddingTgt, config.FlagEmbeddingModel,
		config.FlagIndexType, config.FlagIndexMetric, config.FlagCodec, config.FlagCompression,
	} {
		cmder.flagStrings[key] = new(string)
		config.AddStringFlag(cmd, config.Flags, key, cmder.flagStrings[key])
	}
	for _, key := range []string{
		config.FlagEmbeddingDims, config.FlagNList, config.FlagNProbe,
		config.FlagChunkSize, config.FlagOverlap, config.FlagPerFrame, config.FlagBuildWorkers,
	} {
		cmder.flagInts[key] = new(int)
		config.AddIntFlag(cmd, config.Flags, key, cmder.flagInts[key])
	}

	return cmd
}

func (c *buildCommander) run(cmd *cobra.Command, env *setup.Env, args []string) error {
	paths, err := env.Paths(c.memory)
	if err != nil {
		return err
	}

	b, emb, err := env.Builder()
	if err != nil {
		return err
	}
	defer emb.Close()

	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, path := range args {
		if err := c.add(b, env.Config, path); err != nil {
			return err
		}
	}

	st := b.Stats()
	if st.TotalRecords == 0 {
		return errors.New("no text to build")
	}

	var res *builder.Result
	err = cliui.Step(c.stderr, fmt.Sprintf("Encoding %d records", st.TotalRecords), func() error {
		var buildErr error
		res, buildErr = b.Build(cmd.Context(), paths.Container, paths.IndexBase)
		return buildErr
	})
	if err != nil {
		return err
	}

	if c.asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintln(c.stdout)
	cliui.KeyValue(c.stdout, 12, "container", res.ContainerPath)
	cliui.KeyValue(c.stdout, 12, "index", res.IndexPath)
	cliui.KeyValue(c.stdout, 12, "build id", res.BuildID)
	cliui.KeyValue(c.stdout, 12, "records", res.TotalRecords)
	cliui.KeyValue(c.stdout, 12, "frames", res.TotalFrames)
	cliui.KeyValue(c.stdout, 12, "codec", res.Codec)
	cliui.KeyValue(c.stdout, 12, "size", fmt.Sprintf("%d bytes", res.ContainerBytes))
	cliui.KeyValue(c.stdout, 12, "took", cliui.FormatDuration(res.Duration))
	fmt.Fprintln(c.stdout)
	return nil
}

func (c *buildCommander) add(b *builder.Builder, cfg *config.Config, path string) error {
	if path != "-" {
		_, err := b.AddFile(path, 0, 0)
		return err
	}

	data, err := io.ReadAll(c.stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	md := record.Metadata{{Key: "source", Value: "stdin"}}
	_, err = b.AddText(string(data), cfg.Build.ChunkSize, cfg.Build.Overlap, md)
	return err
}
