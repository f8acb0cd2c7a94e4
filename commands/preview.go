package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"seess/playground"
	"seess/source"
	"seess/state"
)

// Preview writes standalone preview document. Buffers not given on command
// line are taken from the configured project.
func Preview(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("preview")

	dst := cmd.Args().Get(0)
	if len(dst) == 0 {
		return errors.New("no preview destination has been specified")
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	name := cmd.String("theme")
	if name == "" {
		name = env.Cfg.Playground.Theme
	}
	theme, err := playground.ParseTheme(name)
	if err != nil {
		return err
	}

	files := map[playground.Buffer]string{
		playground.BufferCSS:  cmd.String("css"),
		playground.BufferHTML: cmd.String("html"),
	}
	values := make(map[playground.Buffer]string, len(files))
	for buf, file := range files {
		if file == "" {
			continue
		}
		if values[buf], err = source.ReadFile(file); err != nil {
			return err
		}
	}
	if len(values) < len(files) {
		// fill the rest from stored project
		s, err := env.NewSession(ctx, playground.Options{})
		if err != nil {
			return err
		}
		for _, buf := range playground.Buffers {
			if _, ok := values[buf]; !ok {
				values[buf] = s.Value(buf)
			}
		}
		s.Close()
	}

	doc, err := playground.ComposePreview(values[playground.BufferCSS], values[playground.BufferHTML], theme)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, []byte(doc), 0644); err != nil {
		return fmt.Errorf("unable to write preview: %w", err)
	}
	log.Info("Preview written", zap.String("file", dst), zap.String("theme", string(theme)))
	return nil
}
