// Package getcmder provides the get command, which prints one record by id.
package getcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/cmd/memvid/setup"
	"github.com/papercomputeco/memvid/pkg/cliui"
	"github.com/papercomputeco/memvid/pkg/config"
	"github.com/papercomputeco/memvid/pkg/retriever"
)

const getLongDesc string = `Print a single record by id.

Decodes the frame holding the record and prints its text and metadata.

Examples:
  memvid get 42
  memvid get --raw 42 > record.txt
  memvid get --json --memory book 7`

const getShortDesc string = "Print a record by id"

var getFlags = []string{
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCodec,
}

type getCommander struct {
	memory string
	raw    bool
	asJSON bool

	flagStrings map[string]*string
	dims        int

	stdout io.Writer
}

func NewGetCmd() *cobra.Command {
	cmder := &getCommander{
		flagStrings: map[string]*string{},
	}

	cmd := &cobra.Command{
		Use:   "get <record-id>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.stdout = cmd.OutOrStdout()
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 0 {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			env, err := setup.Load(cmd, getFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env, id)
		},
	}

	cmd.Flags().StringVarP(&cmder.memory, "memory", "m", "", "Memory path (default: .memvid/memory)")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print only the record text")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the record as JSON")

	for _, key := range []string{
		config.FlagEmbeddingProv, config.FlagEmbeddingTgt, config.FlagEmbeddingModel, config.FlagCodec,
	} {
		cmder.flagStrings[key] = new(string)
		config.AddStringFlag(cmd, config.Flags, key, cmder.flagStrings[key])
	}
	config.AddIntFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dims)

	return cmd
}

func (c *getCommander) run(cmd *cobra.Command, env *setup.Env, id int) error {
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

	rec, err := r.Record(cmd.Context(), id)
	if err != nil {
		return err
	}

	switch {
	case c.asJSON:
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case c.raw:
		_, err := fmt.Fprintln(c.stdout, rec.Text)
		return err
	}

	rendered, err := cliui.RenderMarkdown(recordMarkdown(rec))
	if err != nil {
		env.Logger.Debug("markdown render failed", "error", err)
	}
	_, err = fmt.Fprint(c.stdout, rendered)
	return err
}

func recordMarkdown(rec retriever.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Record %d\n\n", rec.RecordID)
	fmt.Fprintf(&b, "_frame %d_\n\n", rec.FrameNumber)
	b.WriteString(rec.Text)
	b.WriteString("\n")

	if len(rec.Metadata) > 0 {
		b.WriteString("\n| key | value |\n| --- | --- |\n")
		for _, f := range rec.Metadata {
			fmt.Fprintf(&b, "| %s | %v |\n", f.Key, f.Value)
		}
	}
	return b.String()
}
