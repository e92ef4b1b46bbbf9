package explore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mappichat/regions-atlas/src/colorscale"
	"github.com/mappichat/regions-atlas/src/engine"
	"github.com/mappichat/regions-atlas/src/fileio"
	"github.com/mappichat/regions-atlas/src/project_types"
	"github.com/mappichat/regions-atlas/src/quiz"
	"github.com/mappichat/regions-atlas/src/render"
)

var ErrQuit = errors.New("quit")

const help = `commands:
  level sido|sigungu        load a level (async; "wait" blocks until it lands)
  type geographic|cartogram|hexagonal
  mode dorling|scaled       cartogram mode
  scheme <name>             color scheme
  data <file>               bind a json or csv dataset
  zoom in|out|reset         zoom around the canvas center
  pan <dx> <dy>
  move <x> <y>              pointer move (hover)
  leave                     pointer leaves the map
  click <x> <y>
  highlight <code|name>     blink a region; "highlight" alone clears
  quiz [count]              start a find-the-region quiz; click to answer
  svg <file> | png <file>
  list | help | quit`

type fetchResult struct {
	ticket     fileio.Ticket
	collection project_types.RegionCollection
	err        error
}

// Explorer is a terminal host for one map. All map state is touched only
// from the Run loop.
type Explorer struct {
	selector *fileio.LevelSelector
	out      io.Writer

	m       *render.Map
	vp      *render.Viewport
	regions *project_types.RegionCollection
	input   render.Input
	mode    project_types.CartogramMode
	session *quiz.Session

	results chan fetchResult
	pending int
}

func New(source fileio.GeometrySource, out io.Writer) *Explorer {
	e := &Explorer{
		selector: fileio.NewLevelSelector(source),
		out:      out,
		m:        render.NewMap(),
		input:    render.Input{MapType: project_types.MapGeographic, Scheme: colorscale.Blues},
		mode:     project_types.CartogramDorling,
		results:  make(chan fetchResult, 8),
	}
	e.m.OnHover = func(code string) {
		if code == "" {
			fmt.Fprintln(e.out, "hover: none")
			return
		}
		fmt.Fprintf(e.out, "hover: %s\n", e.describe(code))
	}
	e.m.OnClick = e.onClick
	return e
}

func (e *Explorer) printf(format string, args ...interface{}) {
	fmt.Fprintf(e.out, format+"\n", args...)
}

func (e *Explorer) describe(code string) string {
	for _, s := range e.m.Shapes() {
		if s.Code == code {
			return s.Title()
		}
	}
	return code
}

func (e *Explorer) onClick(code string) {
	e.printf("click: %s", e.describe(code))
	if e.session == nil {
		return
	}
	correct, advanced, err := e.session.Guess(code)
	if err != nil {
		e.printf("quiz: %s", err)
		return
	}
	if correct {
		e.printf("quiz: correct")
	} else if advanced {
		e.printf("quiz: wrong, moving on")
	} else {
		e.printf("quiz: wrong, try again")
	}
	e.m.SetAttempts(e.session.Attempts())
	e.promptQuiz()
}

func (e *Explorer) promptQuiz() {
	if q, ok := e.session.Current(); ok {
		e.printf("quiz: find %s", q.RegionName)
		return
	}
	r := e.session.Result()
	e.printf("quiz: done, %d/%d correct (%d%%, grade %s)", r.Correct, r.Total, r.Percentage, r.Grade)
	e.session = nil
}

// Run reads commands until EOF, ctx cancellation or "quit".
func (e *Explorer) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-e.results:
			e.apply(r)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := e.Exec(ctx, line); err != nil {
				if errors.Is(err, ErrQuit) {
					return nil
				}
				e.printf("error: %s", err)
			}
		}
	}
}

func (e *Explorer) selectLevel(ctx context.Context, level project_types.Level) {
	ticket := e.selector.Begin(level)
	e.pending++
	go func() {
		collection, err := e.selector.Fetch(ctx, ticket)
		select {
		case e.results <- fetchResult{ticket: ticket, collection: collection, err: err}:
		case <-ctx.Done():
		}
	}()
	e.printf("loading %s", level)
}

func (e *Explorer) apply(r fetchResult) {
	e.pending--
	// a result can go stale while queued
	if errors.Is(r.err, fileio.ErrStaleSelection) || !e.selector.IsCurrent(r.ticket) {
		e.printf("discarded stale %s geometry", r.ticket.Level)
		return
	}
	if r.err != nil {
		e.printf("error: loading %s: %s", r.ticket.Level, r.err)
		return
	}
	collection := r.collection
	e.regions = &collection
	e.printf("loaded %s: %d regions", collection.Level, collection.Len())
	e.rerender()
}

func (e *Explorer) wait(ctx context.Context) error {
	for e.pending > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-e.results:
			e.apply(r)
		}
	}
	return nil
}

func (e *Explorer) rerender() {
	if e.regions == nil {
		return
	}
	in := e.input
	in.Regions = e.regions
	in.Cartogram = nil
	if in.MapType == project_types.MapCartogram {
		cartogram, err := engine.GenerateCartogram(e.mode, *e.regions, in.Data, project_types.CartogramOptions{ScaleFactor: 1})
		if err != nil {
			log.Printf("cartogram %s: %s", e.mode, err)
		} else {
			in.Cartogram = &cartogram
		}
	}
	prev := e.m.MapType()
	if err := e.m.Render(in); err != nil {
		e.printf("error: %s", err)
		return
	}
	if e.vp == nil || e.m.MapType() != prev {
		e.vp = e.m.Attach()
	} else {
		minK, maxK := render.ScaleExtent(e.m.MapType())
		e.vp.MinK, e.vp.MaxK = minK, maxK
		e.vp.Set(e.vp.K, e.vp.X, e.vp.Y)
	}
	if e.m.Placeholder() {
		e.printf("rendered placeholder: cartogram unavailable")
		return
	}
	e.printf("rendered %s map: %d shapes", e.m.MapType(), len(e.m.Shapes()))
}

func (e *Explorer) requireMap() error {
	if e.regions == nil {
		return errors.New("no level loaded")
	}
	return nil
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d numbers", n)
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func writeTo(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := write(f); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return nil
}

// Exec runs a single command line.
func (e *Explorer) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		e.printf(help)
	case "quit", "exit":
		return ErrQuit
	case "wait":
		return e.wait(ctx)
	case "level":
		if len(args) != 1 {
			return errors.New("usage: level sido|sigungu")
		}
		level, ok := project_types.ParseLevel(args[0])
		if !ok {
			return fmt.Errorf("unknown level %s", args[0])
		}
		e.session = nil
		e.m.SetAttempts(nil)
		e.selectLevel(ctx, level)
	case "type":
		if len(args) != 1 {
			return errors.New("usage: type geographic|cartogram|hexagonal")
		}
		switch t := project_types.MapType(args[0]); t {
		case project_types.MapGeographic, project_types.MapCartogram, project_types.MapHexagonal:
			e.input.MapType = t
		default:
			return fmt.Errorf("unknown map type %s", args[0])
		}
		e.rerender()
	case "mode":
		if len(args) != 1 {
			return errors.New("usage: mode dorling|scaled")
		}
		e.mode = project_types.CartogramMode(args[0])
		e.rerender()
	case "scheme":
		if len(args) != 1 {
			return errors.New("usage: scheme <name>")
		}
		e.input.Scheme = colorscale.ParseScheme(args[0])
		e.rerender()
	case "data":
		if len(args) != 1 {
			return errors.New("usage: data <file>")
		}
		data, err := fileio.LoadDatasetFile(args[0])
		if err != nil {
			return err
		}
		e.input.Data = data.Data
		if data.ColorScheme != "" {
			e.input.Scheme = colorscale.ParseScheme(data.ColorScheme)
		}
		e.printf("bound %d data points", len(data.Data))
		e.rerender()
	case "zoom":
		if err := e.requireMap(); err != nil {
			return err
		}
		if len(args) != 1 {
			return errors.New("usage: zoom in|out|reset")
		}
		switch args[0] {
		case "in":
			e.vp.ZoomIn()
		case "out":
			e.vp.ZoomOut()
		case "reset":
			e.vp.Reset()
		default:
			return fmt.Errorf("unknown zoom %s", args[0])
		}
		e.printf("transform %s", e.vp.Transform())
	case "pan":
		if err := e.requireMap(); err != nil {
			return err
		}
		d, err := floats(args, 2)
		if err != nil {
			return err
		}
		e.vp.Pan(d[0], d[1])
		e.printf("transform %s", e.vp.Transform())
	case "move", "click":
		if err := e.requireMap(); err != nil {
			return err
		}
		p, err := floats(args, 2)
		if err != nil {
			return err
		}
		if cmd == "move" {
			e.m.PointerMove(e.vp, p[0], p[1])
		} else {
			e.m.Click(e.vp, p[0], p[1])
		}
	case "leave":
		e.m.PointerLeave()
	case "highlight":
		e.m.SetHighlight(strings.Join(args, " "))
	case "quiz":
		if err := e.requireMap(); err != nil {
			return err
		}
		count := quiz.DefaultQuestionCount
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			count = n
		}
		questions := quiz.GenerateQuestions(quiz.NewRand(0), *e.regions, count)
		session, err := quiz.NewSession(quiz.ModeFind, *e.regions, questions, nil)
		if err != nil {
			return err
		}
		e.session = session
		e.m.SetAttempts(session.Attempts())
		e.promptQuiz()
	case "list":
		for _, s := range e.m.Shapes() {
			e.printf("%s\t%s", s.Code, s.Title())
		}
	case "svg", "png":
		if err := e.requireMap(); err != nil {
			return err
		}
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <file>", cmd)
		}
		return writeTo(args[0], func(w io.Writer) error {
			if cmd == "png" {
				return e.m.WritePNG(w, e.vp)
			}
			return e.m.WriteSVG(w, e.vp)
		})
	default:
		return fmt.Errorf("unknown command %s (try help)", cmd)
	}
	return nil
}
