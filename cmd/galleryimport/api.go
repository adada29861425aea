package main

import (
	"github.com/voidshard/galleryimport/pkg/api"
	"github.com/voidshard/galleryimport/pkg/api/http/server"
)

const (
	docApi = `Run the API server`
)

type optsAPI struct {
	optsServer

	Addr string `long:"addr" env:"ADDR" description:"Address to bind to" default:"localhost:8100"`
}

func (c *optsAPI) Execute(args []string) error {
	// Serves the API over http. Configured with OptionsClientDefault so it runs
	// no tidy routines; steps are run by workers (or inline, when poked).
	svc, err := c.service(api.OptionsClientDefault())
	if err != nil {
		return err
	}
	defer svc.Close()

	s := server.NewServer(c.Addr, c.LogDir, c.Debug, c.logger())
	return s.ServeForever(svc)
}
