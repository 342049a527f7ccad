// Copyright 2020, Square, Inc.

// Package xferplan provides the xferplan command: plan a workflow file and
// print the plan, or run the API server.
package xferplan

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/alexflint/go-arg"
	log "github.com/sirupsen/logrus"

	"github.com/square/xferplan/app"
	"github.com/square/xferplan/planner"
	"github.com/square/xferplan/server"
	"github.com/square/xferplan/version"
)

const (
	FORMAT_JSON = "json"
	FORMAT_DOT  = "dot"
)

// CommandLine represents the command line options and env vars.
type CommandLine struct {
	Config   string `arg:"env:XFERPLAN_CONFIG" help:"config file"`
	Workflow string `help:"workflow file to plan (YAML, or JSON if the name ends in .json)"`
	Format   string `help:"plan output format: json or dot"`
	Serve    bool   `help:"run the API server"`
	LogLevel string `arg:"--log-level" help:"log level, overrides the config"`
}

func (CommandLine) Version() string {
	return "xferplan " + version.Version()
}

// Run runs the command with args (without the program name). Plans and
// version and help output are written to out.
func Run(ctx app.Context, args []string, out io.Writer) error {
	c := CommandLine{
		Format: FORMAT_JSON,
	}
	p, err := arg.NewParser(arg.Config{Program: "xferplan"}, &c)
	if err != nil {
		return fmt.Errorf("arg.NewParser: %s", err)
	}
	if err := p.Parse(args); err != nil {
		switch err {
		case arg.ErrHelp:
			p.WriteHelp(out)
			return nil
		case arg.ErrVersion:
			fmt.Fprintln(out, c.Version())
			return nil
		default:
			return fmt.Errorf("Error parsing command line: %s", err)
		}
	}
	if !c.Serve && c.Workflow == "" {
		return fmt.Errorf("--workflow or --serve is required")
	}
	if c.Format != FORMAT_JSON && c.Format != FORMAT_DOT {
		return fmt.Errorf("invalid --format %q, expected %s or %s", c.Format, FORMAT_JSON, FORMAT_DOT)
	}

	ctx.ConfigFile = c.Config
	if err := ctx.Boot(); err != nil {
		return err
	}
	if c.LogLevel != "" {
		level, err := log.ParseLevel(c.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %s", c.LogLevel, err)
		}
		log.SetLevel(level)
	}

	if c.Serve {
		s := server.NewServer(ctx)
		if err := s.Boot(); err != nil {
			return err
		}
		log.Infof("xferplan %s listening on %s", version.Version(), ctx.Config.Server.Addr)
		return s.Run()
	}

	wf, err := planner.LoadWorkflow(c.Workflow)
	if err != nil {
		return err
	}
	plan, err := ctx.Planner.Plan(wf)
	if err != nil {
		return err
	}
	if c.Format == FORMAT_DOT {
		plan.WriteDot(out)
		return nil
	}
	pp, err := plan.Proto()
	if err != nil {
		return err
	}
	bytes, err := json.MarshalIndent(pp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(bytes))
	return nil
}
