package commands

import (
	"context"
	"fmt"
	"io"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"seess/state"
	"seess/store"
)

// Slots lists or deletes persisted buffers.
func Slots(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	db, err := env.OpenStore()
	if err != nil {
		return err
	}

	if key := cmd.String("delete"); key != "" {
		if err := db.Delete(key); err != nil {
			return err
		}
		env.Log.Info("Slot deleted", zap.String("key", key))
		return nil
	}
	return listSlots(db, cmd.Root().Writer)
}

func listSlots(db *store.DB, out io.Writer) error {
	keys, err := db.Keys()
	if err != nil {
		return err
	}
	for _, key := range keys {
		value, _, err := db.Load(key)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s\t%d\n", key, len(value)); err != nil {
			return err
		}
	}
	return nil
}
