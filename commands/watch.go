package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"seess/analysis"
	"seess/playground"
	"seess/source"
	"seess/state"
)

// Watch feeds session buffers with content of files whenever they are saved.
func Watch(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("watch")

	if cmd.Args().Len() == 0 {
		return errors.New("no CSS file to watch has been specified")
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many files", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	files := make(map[string]playground.Buffer, 2)
	for i, buf := range playground.Buffers {
		name := cmd.Args().Get(i)
		if name == "" {
			continue
		}
		path, err := filepath.Abs(name)
		if err != nil {
			return err
		}
		files[path] = buf
	}

	theme, err := playground.ParseTheme(env.Cfg.Playground.Theme)
	if err != nil {
		return err
	}
	dst := cmd.String("preview")

	s, err := env.NewSession(ctx, playground.Options{
		OnStatus: func(st analysis.Status) {
			switch st.Kind {
			case analysis.KindResult:
				log.Info("Analysis", zap.Int("selectors", st.Result.SelectorCount), zap.Int("rules", st.Result.RuleCount), zap.Int("properties", st.Result.PropertyCount))
			case analysis.KindError:
				log.Warn("Analysis failed", zap.String("message", st.Message))
			default:
				log.Debug("Analysis", zap.Stringer("status", st))
			}
		},
		OnPreview: func(css, html string) {
			if dst == "" {
				return
			}
			if err := writePreview(dst, css, html, theme); err != nil {
				log.Warn("Unable to refresh preview", zap.Error(err))
				return
			}
			log.Debug("Preview refreshed", zap.String("file", dst))
		},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	load := func(path string, buf playground.Buffer) {
		text, err := source.ReadFile(path)
		if err != nil {
			// file may be in the middle of being replaced
			log.Warn("Unable to load file", zap.String("file", path), zap.Error(err))
			return
		}
		if s.SetValue(buf, text) {
			log.Debug("Buffer updated", zap.String("buffer", string(buf)), zap.String("file", path))
		}
	}
	for path, buf := range files {
		load(path, buf)
	}

	fw, err := newFileWatcher(files, load, log)
	if err != nil {
		return err
	}
	defer fw.Close()

	log.Info("Watching files, interrupt to stop", zap.Int("files", len(files)), zap.String("preview", dst))
	return fw.run(ctx)
}

func writePreview(dst, css, html string, theme playground.Theme) error {
	doc, err := playground.ComposePreview(css, html, theme)
	if err != nil {
		return err
	}
	// replace atomically so browsers never load half written document
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// fileWatcher watches directories of files so editors replacing files on save
// are handled.
type fileWatcher struct {
	w        *fsnotify.Watcher
	files    map[string]playground.Buffer
	onChange func(path string, buf playground.Buffer)
	log      *zap.Logger
}

func newFileWatcher(files map[string]playground.Buffer, onChange func(string, playground.Buffer), log *zap.Logger) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create file watcher: %w", err)
	}

	fw := &fileWatcher{
		w:        w,
		files:    make(map[string]playground.Buffer, len(files)),
		onChange: onChange,
		log:      log,
	}
	dirs := make(map[string]struct{})
	for path, buf := range files {
		path = filepath.Clean(path)
		fw.files[path] = buf
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return nil, multierr.Append(fmt.Errorf("unable to watch '%s': %w", dir, err), w.Close())
		}
	}
	return fw, nil
}

// run delivers changes until ctx is done.
func (fw *fileWatcher) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			path := filepath.Clean(ev.Name)
			if buf, ok := fw.files[path]; ok {
				fw.onChange(path, buf)
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return nil
			}
			fw.log.Warn("File watcher error", zap.Error(err))
		}
	}
}

func (fw *fileWatcher) Close() error {
	return fw.w.Close()
}
