package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/voidshard/galleryimport/pkg/api/http/client"
	"github.com/voidshard/galleryimport/pkg/structs"
)

const (
	docEnqueue = `Upload a gallery export (a JSON array, or {"items": [...]}) & start importing it`
	docStatus  = `Show the progress of a job`
	docControl = `Pause, resume or stop an import job`
	docJobs    = `List recent jobs; admins see everyone's`
)

func (c *optsClient) client() (*client.Client, *structs.Caller, error) {
	cl, err := client.New(c.Addr)
	return cl, &structs.Caller{ID: c.User, Admin: c.Admin}, err
}

type optsEnqueue struct {
	optsClient

	SkipExisting   bool   `long:"skip-existing" description:"Skip items whose external id was already imported"`
	DownloadImages bool   `long:"download-images" description:"Download & attach each item's images"`
	SourceURL      string `long:"source-url" env:"SOURCE_URL" description:"Base URL relative image paths resolve against"`

	Args struct {
		File string `positional-arg-name:"file" description:"Export file to import"`
	} `positional-args:"yes" required:"yes"`
}

func (c *optsEnqueue) Execute(args []string) error {
	cl, caller, err := c.client()
	if err != nil {
		return err
	}
	job, err := cl.Enqueue(context.Background(), caller, &structs.EnqueueRequest{
		Source: structs.PayloadSource{Path: c.Args.File},
		Options: structs.JobOptions{
			SkipExisting:   c.SkipExisting,
			DownloadImages: c.DownloadImages,
			SourceURL:      c.SourceURL,
		},
	})
	if err != nil {
		return err
	}
	return output(job)
}

type optsStatus struct {
	optsClient

	Args struct {
		JobID string `positional-arg-name:"job-id"`
	} `positional-args:"yes" required:"yes"`
}

func (c *optsStatus) Execute(args []string) error {
	cl, caller, err := c.client()
	if err != nil {
		return err
	}
	st, err := cl.Status(context.Background(), caller, c.Args.JobID)
	if err != nil {
		return err
	}
	return output(st)
}

type optsControl struct {
	optsClient

	Args struct {
		JobID  string `positional-arg-name:"job-id"`
		Action string `positional-arg-name:"action" description:"pause, resume or stop"`
	} `positional-args:"yes" required:"yes"`
}

func (c *optsControl) Execute(args []string) error {
	action := structs.ToAction(c.Args.Action)
	if action == "" {
		return fmt.Errorf("unknown action %q", c.Args.Action)
	}
	cl, caller, err := c.client()
	if err != nil {
		return err
	}
	job, err := cl.Control(context.Background(), caller, &structs.ControlRequest{JobID: c.Args.JobID, Action: action})
	if err != nil {
		return err
	}
	return output(job)
}

type optsJobs struct {
	optsClient

	Limit    int      `long:"limit" default:"100" description:"Max jobs to list"`
	Kinds    []string `long:"kind" description:"Only jobs of this kind (import, delete)"`
	Statuses []string `long:"status" description:"Only jobs in this status"`
	Owner    string   `long:"owner" description:"Only jobs of this owner (admins only)"`
}

func (c *optsJobs) Execute(args []string) error {
	cl, caller, err := c.client()
	if err != nil {
		return err
	}
	q := &structs.Query{Limit: c.Limit, Kinds: c.Kinds, Owner: c.Owner}
	for _, s := range c.Statuses {
		st := structs.ToStatus(s)
		if st == "" {
			return fmt.Errorf("unknown status %q", s)
		}
		q.Statuses = append(q.Statuses, st)
	}
	entries, err := cl.Jobs(context.Background(), caller, q)
	if err != nil {
		return err
	}
	return output(entries)
}

func output(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
