package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"seess/analysis"
	"seess/playground"
	"seess/source"
	"seess/state"
)

const sessionHelp = `Commands:
  css TEXT                 replace CSS buffer, \n in TEXT is a line break
  html TEXT                replace HTML buffer
  load css|html FILE       replace buffer with file content
  undo [css|html]          undo the latest edit (of a buffer)
  redo [css|html]          redo the latest undone edit (of a buffer)
  reset css|html [TEXT]    replace buffer dropping its history, default content when TEXT is absent
  status                   show analysis and history state
  show css|html            print buffer
  theme [light|dark]       switch preview theme
  preview FILE             write preview document
  help                     this text
  quit                     leave session
`

// Session runs interactive editing session of the configured project.
func Session(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("repl")

	theme, err := playground.ParseTheme(env.Cfg.Playground.Theme)
	if err != nil {
		return err
	}
	s, err := env.NewSession(ctx, playground.Options{
		OnStatus: func(st analysis.Status) {
			if st.Kind == analysis.KindError {
				log.Warn("Analysis failed", zap.String("message", st.Message))
			}
		},
	})
	if err != nil {
		return err
	}
	defer s.Close()

	r := &repl{s: s, theme: theme, out: cmd.Root().Writer, log: log}
	in := cmd.Root().Reader
	if in == nil {
		in = os.Stdin
	}
	log.Info("Session started", zap.String("project", env.Cfg.Playground.Project))
	return r.run(ctx, in)
}

type repl struct {
	s     *playground.Session
	theme playground.Theme
	out   io.Writer
	log   *zap.Logger
}

var errQuit = errors.New("quit")

func (r *repl) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			r.log.Warn("Unable to read input", zap.Error(err))
		}
	}()

	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			err := r.exec(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
		}
	}
}

// exec runs single command line.
func (r *repl) exec(line string) error {
	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "":
		return nil
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprint(r.out, sessionHelp)
		return nil

	case "css", "html":
		buf, _ := playground.ParseBuffer(verb)
		if !r.s.SetValue(buf, unescape(rest)) {
			fmt.Fprintln(r.out, "unchanged")
		}
		return nil

	case "load":
		name, file, _ := strings.Cut(rest, " ")
		buf, err := playground.ParseBuffer(name)
		if err != nil {
			return err
		}
		if file = strings.TrimSpace(file); file == "" {
			return errors.New("no file specified")
		}
		text, err := source.ReadFile(file)
		if err != nil {
			return err
		}
		r.s.SetValue(buf, text)
		return nil

	case "undo", "redo":
		return r.step(verb == "undo", rest)

	case "reset":
		name, text, found := strings.Cut(rest, " ")
		buf, err := playground.ParseBuffer(name)
		if err != nil {
			return err
		}
		value := unescape(strings.TrimSpace(text))
		if !found {
			value = defaultContent(buf)
		}
		r.s.Reset(buf, value)
		return nil

	case "status":
		r.status()
		return nil

	case "show":
		buf, err := playground.ParseBuffer(rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, r.s.Value(buf))
		return nil

	case "theme":
		if rest == "" {
			r.theme = r.theme.Toggle()
		} else {
			theme, err := playground.ParseTheme(rest)
			if err != nil {
				return err
			}
			r.theme = theme
		}
		fmt.Fprintf(r.out, "theme: %s\n", r.theme)
		return nil

	case "preview":
		if rest == "" {
			return errors.New("no file specified")
		}
		r.s.Flush()
		doc, err := r.s.Preview(r.theme)
		if err != nil {
			return err
		}
		if err := os.WriteFile(rest, []byte(doc), 0644); err != nil {
			return fmt.Errorf("unable to write preview: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown command '%s', try help", verb)
	}
}

func (r *repl) step(undo bool, name string) error {
	if name == "" {
		var (
			buf playground.Buffer
			ok  bool
		)
		if undo {
			buf, ok = r.s.Undo()
		} else {
			buf, ok = r.s.Redo()
		}
		if !ok {
			fmt.Fprintln(r.out, "nothing to do")
			return nil
		}
		fmt.Fprintln(r.out, buf)
		return nil
	}

	buf, err := playground.ParseBuffer(name)
	if err != nil {
		return err
	}
	var ok bool
	if undo {
		ok = r.s.UndoBuffer(buf)
	} else {
		ok = r.s.RedoBuffer(buf)
	}
	if !ok {
		fmt.Fprintln(r.out, "nothing to do")
	}
	return nil
}

func (r *repl) status() {
	snap := r.s.Snapshot()
	fmt.Fprintf(r.out, "analysis: %s", snap.Status)
	if v := r.s.AnalyzerVersion(); v != "" {
		fmt.Fprintf(r.out, " (%s)", v)
	}
	fmt.Fprintln(r.out)
	for _, b := range []struct {
		name  playground.Buffer
		state playground.BufferState
	}{{playground.BufferCSS, snap.CSS}, {playground.BufferHTML, snap.HTML}} {
		fmt.Fprintf(r.out, "%s: %d bytes, undo %t, redo %t, last change %s\n",
			b.name, len(b.state.Value), b.state.CanUndo, b.state.CanRedo, b.state.Origin)
	}
	fmt.Fprintf(r.out, "theme: %s\n", r.theme)
}

func defaultContent(buf playground.Buffer) string {
	if buf == playground.BufferHTML {
		return playground.DefaultHTML
	}
	return playground.DefaultCSS
}

var unescaper = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`)

func unescape(s string) string {
	return unescaper.Replace(s)
}
