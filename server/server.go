// Copyright 2017-2020, Square, Inc.

// Package server bootstraps and runs the xferplan API server.
package server

import (
	"fmt"

	"github.com/square/xferplan/api"
	"github.com/square/xferplan/app"
)

type Server struct {
	appCtx app.Context
	api    *api.API
}

func NewServer(appCtx app.Context) *Server {
	return &Server{
		appCtx: appCtx,
	}
}

// Boot loads the config, the catalogs, and the planner, then makes the API.
// It does not boot the app context again if it already has a planner.
func (s *Server) Boot() error {
	if s.appCtx.Planner == nil {
		if err := s.appCtx.Boot(); err != nil {
			return fmt.Errorf("boot: %s", err)
		}
	}

	// API: endpoints and controllers
	s.api = api.NewAPI(s.appCtx)

	return nil
}

func (s *Server) Run() error {
	if s.api == nil {
		panic("Server.Run called before Server.Boot")
	}
	return s.api.Run()
}

func (s *Server) API() *api.API {
	return s.api
}
