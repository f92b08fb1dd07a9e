package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"

	"github.com/cyp0633/libtaskrec/calendar"
	"github.com/cyp0633/libtaskrec/calendar/caldav"
	"github.com/cyp0633/libtaskrec/model"
	"github.com/cyp0633/libtaskrec/recurrence"
	"github.com/cyp0633/libtaskrec/reminder"
)

var errNoCalDAV = errors.New("no CalDAV server configured, set TASKREC_CALDAV_URL")

type NextCmd struct {
	File  string `help:"Task JSON file." type:"existingfile" required:"" short:"f"`
	Count int    `help:"List this many upcoming deadlines instead." short:"n"`
}

func (c *NextCmd) Run(a *app) error {
	task, err := readTask(c.File)
	if err != nil {
		return err
	}
	engine := a.engine()

	if c.Count > 0 {
		deadlines := engine.Occurrences(task, c.Count)
		if len(deadlines) == 0 {
			fmt.Fprintln(a.out, "no upcoming deadlines")
			return nil
		}
		for _, d := range deadlines {
			fmt.Fprintln(a.out, model.FormatTimestamp(d))
		}
		return nil
	}

	next, ok := engine.Next(task).Get()
	if !ok {
		fmt.Fprintln(a.out, "no successor")
		return nil
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(next)
}

type LeadCmd struct {
	Priority string `help:"Task priority." enum:"critical,important,normal,low" default:"normal" short:"p"`
	Deadline string `help:"ISO deadline, omitted when there is none." short:"d"`
}

func (c *LeadCmd) Run(a *app) error {
	minutes := a.advisor().LeadMinutes(model.Priority(c.Priority), c.Deadline)
	fmt.Fprintln(a.out, minutes)
	return nil
}

type EstimateCmd struct {
	Priority string `help:"Task priority." enum:"critical,important,normal,low" default:"normal" short:"p"`
	Deadline string `help:"ISO deadline, omitted when there is none." short:"d"`
}

func (c *EstimateCmd) Run(a *app) error {
	hours := a.advisor().EstimateHours(model.Priority(c.Priority), c.Deadline)
	fmt.Fprintln(a.out, strconv.FormatFloat(hours, 'f', -1, 64))
	return nil
}

type IcsCmd struct {
	File string `help:"Task JSON file." type:"existingfile" required:"" short:"f"`
}

func (c *IcsCmd) Run(a *app) error {
	task, err := readTask(c.File)
	if err != nil {
		return err
	}
	data, err := calendar.EncodeTask(task, a.clock.Now(), a.cfg.Location)
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}

type PublishCmd struct {
	File string `help:"Task JSON file." type:"existingfile" required:"" short:"f"`
}

func (c *PublishCmd) Run(a *app) error {
	if !a.cfg.CalDAVEnabled() {
		return errNoCalDAV
	}
	task, err := readTask(c.File)
	if err != nil {
		return err
	}

	pub, err := caldav.New(a.cfg.CalDAV,
		caldav.WithClock(a.clock),
		caldav.WithLocation(a.cfg.Location),
		caldav.WithLogger(a.logger))
	if err != nil {
		return err
	}
	href, err := pub.Publish(context.Background(), task)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", task.ID, err)
	}
	fmt.Fprintln(a.out, href)
	return nil
}

func (a *app) engine() *recurrence.Engine {
	return recurrence.NewEngineWithConfig(a.cfg.EngineConfig(),
		recurrence.WithClock(a.clock),
		recurrence.WithLogger(a.logger))
}

func (a *app) advisor() *reminder.Advisor {
	return reminder.NewAdvisor(a.clock, a.cfg.Location)
}

// readTask loads a task from a JSON file. A missing ID is filled in so the
// task can be exported.
func readTask(path string) (model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Task{}, err
	}
	var task model.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return model.Task{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	return task, nil
}
