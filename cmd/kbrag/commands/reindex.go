package commands

import (
	"context"

	"github.com/urfave/cli/v3"
)

// IndexRebuildAction re-chunks and re-embeds every Approved document. Used
// after changing the chunking parameters or the embedding model.
func IndexRebuildAction(ctx context.Context, cmd *cli.Command) error {
	app, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Indexer.RebuildAll(ctx, app.Store)
}
