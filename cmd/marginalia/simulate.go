package main

import (
	"context"
	"fmt"
	"math"
	"text/tabwriter"
	"time"

	"github.com/FocuswithJustin/marginalia/core/engine"
	"github.com/FocuswithJustin/marginalia/core/render"
	"github.com/FocuswithJustin/marginalia/core/tree"
)

// SimulateCmd scrolls a virtual viewport from top to bottom and prints how
// many markers are painted at each step.
type SimulateCmd struct {
	File         string        `arg:"" help:"XHTML or HTML document" type:"existingfile"`
	Scope        string        `help:"Scope name (default: file name)"`
	Height       float64       `help:"Viewport height in layout units" default:"600"`
	Step         float64       `help:"Scroll step (default: half the viewport)"`
	LineHeight   float64       `help:"Estimated line height" default:"24"`
	CharsPerLine int           `help:"Estimated characters per line" default:"80"`
	Buffer       float64       `help:"Viewport heights painted above and below" default:"1"`
	FrameBudget  time.Duration `help:"Paint time per frame" default:"8ms" env:"MARGINALIA_FRAME_BUDGET"`
	MaxFrames    int           `help:"Frames allowed per scroll step" default:"1000"`
}

func (c *SimulateCmd) Run(ctx context.Context, g *Globals) error {
	d, err := loadDocument(c.File, g.Root)
	if err != nil {
		return err
	}
	anns, closeStore, err := scopeAnnotations(ctx, g, defaultScope(c.File, c.Scope))
	if err != nil {
		return err
	}
	defer closeStore()

	cfg := g.engineConfig()
	cfg.Render.LineHeight = c.LineHeight
	cfg.Render.CharsPerLine = c.CharsPerLine
	cfg.Render.BufferFactor = c.Buffer
	cfg.Render.FrameBudget = c.FrameBudget
	eng := engine.New(cfg)

	step := c.Step
	if step <= 0 {
		step = c.Height / 2
	}
	tm := tree.NewTextMap(d, d.Root())
	total := math.Ceil(float64(tm.Len())/float64(max(c.CharsPerLine, 1))) * c.LineHeight

	sched := render.NewManualScheduler()
	vp := render.Viewport{Height: c.Height}
	r := eng.AttachRenderer(d, nil, sched, anns)
	defer r.Destroy()

	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCROLL\tVISIBLE\tPAINTED\tFRAMES")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Render(vp); err != nil {
			return err
		}
		frames := 0
		for sched.Pending() > 0 && frames < c.MaxFrames {
			sched.Tick(time.Now())
			frames++
		}
		fmt.Fprintf(tw, "%.0f\t%d\t%d\t%d\n", vp.ScrollTop, r.ComputeVisibleRange(vp).Len(), len(r.Painted()), frames)
		if vp.ScrollTop+vp.Height >= total {
			break
		}
		vp.ScrollTop += step
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	st := r.Stats()
	fmt.Fprintf(g.stdout(), "annotations=%d frames=%d painted=%d evicted=%d failed=%d\n",
		r.Len(), st.Frames, st.Painted, st.Evicted, st.Failed)
	return nil
}
