// Package searchcmder provides the search command.
package searchcmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/cmd/memvid/setup"
	"github.com/papercomputeco/memvid/pkg/cliui"
	"github.com/papercomputeco/memvid/pkg/config"
	"github.com/papercomputeco/memvid/pkg/retriever"
	"github.com/papercomputeco/memvid/pkg/utils"
)

const searchLongDesc string = `Search a memory by semantic similarity.

Embeds the query, ranks records in the vector index, and decodes only the
frames holding the top results. When the timeout passes first, the results
that were decoded are printed and marked partial.

Examples:
  memvid search "how are frames compressed"
  memvid search --top-k 10 --memory book "the whale"
  memvid search --json "retrieval timeout"`

const searchShortDesc string = "Search a memory"

var searchFlags = []string{
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCodec,
	config.FlagTopK,
	config.FlagMaxWorkers,
	config.FlagCacheSize,
	config.FlagTimeout,
}

type searchCommander struct {
	memory string
	asJSON bool
	width  int

	flagStrings map[string]*string
	flagInts    map[string]*int

	stdout io.Writer
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{
		flagStrings: map[string]*string{},
		flagInts:    map[string]*int{},
	}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.stdout = cmd.OutOrStdout()
			env, err := setup.Load(cmd, searchFlags)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.memory, "memory", "m", "", "Memory path (default: .memvid/memory)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print results as JSON")
	cmd.Flags().IntVar(&cmder.width, "width", 120, "Truncate result text to this many characters (0 for full text)")

	for _, key := range []string{
		config.FlagEmbeddingProv, config.FlagEmbeddingTgt, config.FlagEmbeddingModel,
		config.FlagCodec, config.FlagTimeout,
	} {
		cmder.flagStrings[key] = new(string)
		config.AddStringFlag(cmd, config.Flags, key, cmder.flagStrings[key])
	}
	for _, key := range []string{
		config.FlagEmbeddingDims, config.FlagTopK, config.FlagMaxWorkers, config.FlagCacheSize,
	} {
		cmder.flagInts[key] = new(int)
		config.AddIntFlag(cmd, config.Flags, key, cmder.flagInts[key])
	}

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, env *setup.Env, query string) error {
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

	res, err := r.Search(cmd.Context(), query, env.Config.Retrieval.TopK)
	if err != nil && (res == nil || !errors.Is(err, retriever.ErrSearchTimeout)) {
		return err
	}

	if c.asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	c.render(query, res)
	return nil
}

func (c *searchCommander) render(query string, res *retriever.SearchResult) {
	fmt.Fprintf(c.stdout, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Query:"),
		cliui.ValueStyle.Render(query),
	)

	if len(res.Results) == 0 {
		fmt.Fprintf(c.stdout, "  %s\n\n", cliui.DimStyle.Render("No results."))
	}

	for i, hit := range res.Results {
		text := hit.Text
		if c.width > 0 {
			text = utils.Truncate(text, c.width)
		}
		fmt.Fprintf(c.stdout, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			cliui.ScoreStyle.Render(fmt.Sprintf("%.4f", hit.Score)),
			cliui.DimStyle.Render(fmt.Sprintf("record %d, frame %d", hit.RecordID, hit.FrameNumber)),
		)
		fmt.Fprintf(c.stdout, "      %s\n\n", cliui.ValueStyle.Render(text))
	}

	if res.Partial {
		fmt.Fprintf(c.stdout, "  %s\n", cliui.WarnStyle.Render("Search timed out; showing the results decoded in time."))
	}
	if res.Dropped > 0 {
		fmt.Fprintf(c.stdout, "  %s\n", cliui.WarnStyle.Render(fmt.Sprintf("%d results dropped: frame failed to decode.", res.Dropped)))
	}
	fmt.Fprintf(c.stdout, "  %s\n\n", cliui.DimStyle.Render(cliui.FormatDuration(res.Elapsed)))
}
