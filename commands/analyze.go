// Package commands implements program subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"seess/analysis"
	"seess/css"
	"seess/source"
	"seess/state"
)

// renderer formats result for a single CSS text, empty name stands for
// standard input.
type renderer func(ctx context.Context, name, text string) (string, error)

func statsRenderer(an analysis.Analyzer) renderer {
	return func(ctx context.Context, name, text string) (string, error) {
		res, err := an.Analyze(ctx, text)
		if err != nil {
			return "", err
		}
		if name == "" {
			return res.String() + "\n", nil
		}
		return fmt.Sprintf("%s\t%s\n", name, res), nil
	}
}

func outlineRenderer(p *css.Parser) renderer {
	return func(_ context.Context, name, text string) (string, error) {
		if name == "" {
			name = "<stdin>"
		}
		return p.Parse([]byte(text), name).Outline(name), nil
	}
}

// Analyze prints structural statistics of CSS files or standard input.
func Analyze(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("analyze")

	var (
		render  renderer
		version string
	)
	if cmd.Bool("details") {
		render, version = outlineRenderer(css.NewParser(log)), css.ParserVersion
	} else {
		cp, err := env.Capability(ctx, cmd.String("analyzer"))
		if err != nil {
			return err
		}
		an, err := cp.Wait(ctx)
		if err != nil {
			return err
		}
		render, version = statsRenderer(an), an.Version()
	}

	files := cmd.Args().Slice()
	log.Debug("Analyzing", zap.String("analyzer", version), zap.Strings("files", files))
	defer func(start time.Time) {
		log.Debug("Analysis completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	if len(files) == 0 {
		return analyzeReader(ctx, render, cmd.Root().Reader, cmd.Root().Writer)
	}
	return analyzeFiles(ctx, render, files, cmd.Root().Writer, log)
}

func analyzeReader(ctx context.Context, render renderer, r io.Reader, out io.Writer) error {
	if r == nil {
		r = os.Stdin
	}
	text, err := source.Read(r)
	if err != nil {
		return fmt.Errorf("unable to read standard input: %w", err)
	}
	res, err := render(ctx, "", text)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, res)
	return err
}

// analyzeFiles reports every file, errors do not stop processing of the
// remaining ones.
func analyzeFiles(ctx context.Context, render renderer, files []string, out io.Writer, log *zap.Logger) (err error) {
	for _, name := range files {
		if er := ctx.Err(); er != nil {
			return multierr.Append(err, er)
		}
		text, er := source.ReadFile(name)
		if er != nil {
			log.Error("Unable to read file", zap.String("file", name), zap.Error(er))
			err = multierr.Append(err, er)
			continue
		}
		res, er := render(ctx, name, text)
		if er != nil {
			log.Error("Unable to analyze file", zap.String("file", name), zap.Error(er))
			err = multierr.Append(err, er)
			continue
		}
		if _, er := io.WriteString(out, res); er != nil {
			return multierr.Append(err, er)
		}
	}
	return err
}
