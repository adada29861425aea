package main

import (
	"github.com/voidshard/galleryimport/pkg/records"
)

const (
	docMigrate = `Apply the gallery records schema to postgres`
)

type optsMigrate struct {
	optsGeneral
	optsDatabase
}

func (c *optsMigrate) Execute(args []string) error {
	log := c.logger()
	err := records.Migrate(&records.Options{URL: c.databaseURL()})
	if err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}
