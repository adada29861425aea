package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/voidshard/galleryimport/pkg/api"
)

const (
	docWorker = `Run a background worker: it runs job steps as their triggers fire & re-arms jobs whose triggers went missing`
)

type optsWorker struct {
	optsServer
}

func (c *optsWorker) Execute(args []string) error {
	svc, err := c.service(api.OptionsServerDefault())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(svc.Run)
	eg.Go(func() error {
		<-ctx.Done()
		return svc.Close()
	})
	return eg.Wait()
}
