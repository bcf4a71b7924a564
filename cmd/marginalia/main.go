// Command marginalia anchors, stores and renders annotations on XHTML and
// HTML chapters.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/marginalia/core/engine"
	"github.com/FocuswithJustin/marginalia/internal/logging"
	"github.com/FocuswithJustin/marginalia/internal/store"
	"github.com/FocuswithJustin/marginalia/internal/validation"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	DB          string `name:"db" help:"Annotation database path" default:"marginalia.db" type:"path" env:"MARGINALIA_DB"`
	Root        string `help:"Container inside the document: XPath for XHTML, element id for HTML" env:"MARGINALIA_ROOT"`
	LogLevel    string `help:"Log level" default:"warn" enum:"debug,info,warn,error" env:"MARGINALIA_LOG_LEVEL"`
	LogFormat   string `help:"Log format" default:"text" enum:"json,text" env:"MARGINALIA_LOG_FORMAT"`
	MarkerTag   string `help:"Element name used for markers" default:"span" env:"MARGINALIA_MARKER_TAG"`
	ClassPrefix string `help:"Marker class prefix" default:"highlight" env:"MARGINALIA_CLASS_PREFIX"`

	// Out receives command output; nil means stdout.
	Out io.Writer `kong:"-"`
}

func (g *Globals) stdout() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) openStore(ctx context.Context) (*store.Store, error) {
	if err := validation.ValidatePath(g.DB); err != nil {
		return nil, fmt.Errorf("invalid --db: %w", err)
	}
	return store.Open(ctx, g.DB)
}

func (g *Globals) engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if g.MarkerTag != "" {
		cfg.Paint.MarkerTag = g.MarkerTag
	}
	if g.ClassPrefix != "" {
		cfg.Paint.ClassPrefix = g.ClassPrefix
	}
	return cfg
}

func (g *Globals) initLogging() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// CLI defines the command-line interface for marginalia.
type CLI struct {
	Globals `embed:""`

	Anchor   AnchorCmd   `cmd:"" help:"Anchor a character range of a document as a new annotation"`
	List     ListCmd     `cmd:"" help:"List stored annotations"`
	Show     ShowCmd     `cmd:"" help:"Print one annotation as JSON"`
	Delete   DeleteCmd   `cmd:"" help:"Delete an annotation and its notes"`
	Note     NoteGroup   `cmd:"" help:"Note operations"`
	Resolve  ResolveCmd  `cmd:"" help:"Resolve a scope's annotations against a document"`
	Paint    PaintCmd    `cmd:"" help:"Paint a scope's annotations into a document"`
	Relate   RelateCmd   `cmd:"" help:"Recompute relations between a scope's annotations"`
	Simulate SimulateCmd `cmd:"" help:"Scroll a virtual viewport through a document and report renderer work"`
	Export   ExportCmd   `cmd:"" help:"Export annotations as xz-compressed JSON lines"`
	Import   ImportCmd   `cmd:"" help:"Import an export archive"`
	Serve    ServeCmd    `cmd:"" help:"Serve marker activation events over WebSocket"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// NoteGroup contains note operations.
type NoteGroup struct {
	Add NoteAddCmd `cmd:"" help:"Add a note to an annotation"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("marginalia"),
		kong.Description("Durable text anchors and annotation rendering for XHTML and HTML documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := cli.initLogging(); err != nil {
		kctx.FatalIfErrorf(fmt.Errorf("invalid logging flags: %w", err))
	}
	err := kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
