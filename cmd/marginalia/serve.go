package main

import (
	"context"

	"github.com/FocuswithJustin/marginalia/core/engine"
	"github.com/FocuswithJustin/marginalia/core/render"
	"github.com/FocuswithJustin/marginalia/internal/events"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

// ServeCmd paints a document and serves marker activations.
type ServeCmd struct {
	File        string   `arg:"" help:"XHTML or HTML document" type:"existingfile"`
	Scope       string   `help:"Scope name (default: file name)"`
	Host        string   `help:"Listen host" default:"127.0.0.1" env:"MARGINALIA_HOST"`
	Port        int      `help:"Listen port" default:"8787" env:"MARGINALIA_PORT"`
	AllowOrigin []string `help:"Allowed WebSocket origins" default:"*" env:"MARGINALIA_ALLOW_ORIGIN"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	d, err := loadDocument(c.File, g.Root)
	if err != nil {
		return err
	}
	anns, closeStore, err := scopeAnnotations(ctx, g, defaultScope(c.File, c.Scope))
	if err != nil {
		return err
	}
	closeStore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := render.NewLoop(render.DefaultFrameInterval)
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	eng := engine.New(g.engineConfig())
	painted := 0
	err = loop.Do(ctx, func() {
		for _, a := range anns {
			if eng.RestoreAnnotation(a, d) {
				painted++
			}
		}
	})
	if err != nil {
		return err
	}
	logging.Info("annotations painted", "painted", painted, "total", len(anns))

	cfg := events.DefaultConfig()
	cfg.Host = c.Host
	cfg.Port = c.Port
	cfg.AllowedOrigins = c.AllowOrigin
	srv := events.NewServer(cfg, eng, loop, d)

	err = srv.ListenAndServe(ctx)
	cancel()
	<-loopDone
	return err
}
