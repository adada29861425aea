package main

import (
	"golang.org/x/sync/errgroup"

	"github.com/voidshard/galleryimport/pkg/api"
	"github.com/voidshard/galleryimport/pkg/api/http/server"
)

const (
	docAll = `Run the API server and a background worker in one process`
)

type optsAll struct {
	optsServer

	Addr string `long:"addr" env:"ADDR" description:"Address to bind to" default:"localhost:8100"`
}

func (c *optsAll) Execute(args []string) error {
	svc, err := c.service(api.OptionsServerDefault())
	if err != nil {
		return err
	}

	s := server.NewServer(c.Addr, c.LogDir, c.Debug, c.logger())

	var eg errgroup.Group
	eg.Go(svc.Run)
	eg.Go(func() error {
		// the server returns on SIGINT / SIGTERM, which stops the worker too
		defer svc.Close()
		return s.ServeForever(svc)
	})
	return eg.Wait()
}
