// Copyright 2017-2020, Square, Inc.

// Package api provides controllers for each api endpoint. Controllers are
// "dumb wiring"; there is little to no application logic in this package.
// Controllers call the planner and map its errors to HTTP responses.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/pkg/errors"

	"github.com/square/xferplan/app"
	serr "github.com/square/xferplan/errors"
	"github.com/square/xferplan/proto"
	"github.com/square/xferplan/transfer/implementation"
	v "github.com/square/xferplan/version"
)

const (
	API_ROOT = "/api/v1/"
)

// API provides controllers for endpoints it registers with a router.
// It satisfies the http.HandlerFunc interface.
type API struct {
	appCtx app.Context
	// --
	echo *echo.Echo
}

// NewAPI creates a new API struct. It initializes an echo web server within the
// struct, and registers all of the API's routes with it. appCtx must be booted.
func NewAPI(appCtx app.Context) *API {
	api := &API{
		appCtx: appCtx,
		// --
		echo: echo.New(),
	}

	// //////////////////////////////////////////////////////////////////////
	// Routes
	// //////////////////////////////////////////////////////////////////////

	api.echo.POST(API_ROOT+"plans", api.createPlanHandler)               // plan -> proto.Plan
	api.echo.GET(API_ROOT+"implementations", api.implementationsHandler) // -> proto.Implementations
	api.echo.GET("/version", api.versionHandler)                         // return version.Version()

	// //////////////////////////////////////////////////////////////////////
	// Middleware and hooks
	// //////////////////////////////////////////////////////////////////////
	api.echo.Use(middleware.Recover())
	api.echo.Use(middleware.Logger())
	api.echo.Use((func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(v.HEADER, v.Version())
			return next(c)
		}
	}))

	return api
}

func (api *API) Router() *echo.Echo {
	return api.echo
}

// Run makes the API listen on the configured address.
func (api *API) Run() error {
	var err error
	if api.appCtx.Config.Server.TLS.CertFile != "" && api.appCtx.Config.Server.TLS.KeyFile != "" {
		err = api.echo.StartTLS(api.appCtx.Config.Server.Addr, api.appCtx.Config.Server.TLS.CertFile, api.appCtx.Config.Server.TLS.KeyFile)
	} else {
		err = api.echo.Start(api.appCtx.Config.Server.Addr)
	}
	return err
}

// Stop stops the API when it's running. When Stop is called, Run returns
// immediately. Make sure to wait for Stop to return.
func (api *API) Stop() error {
	var err error
	if api.appCtx.Config.Server.TLS.CertFile != "" && api.appCtx.Config.Server.TLS.KeyFile != "" {
		err = api.echo.TLSServer.Shutdown(context.TODO())
	} else {
		err = api.echo.Server.Shutdown(context.TODO())
	}
	return err
}

// ServeHTTP makes the API implement the http.HandlerFunc interface.
func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.echo.ServeHTTP(w, r)
}

// POST <API_ROOT>/plans
// Plan a workflow.
func (api *API) createPlanHandler(c echo.Context) error {
	var req proto.PlanRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	plan, err := api.appCtx.Planner.Plan(req.Workflow)
	if err != nil {
		return handleError(err, "", c)
	}
	pp, err := plan.Proto()
	if err != nil {
		return handleError(err, plan.RunId, c)
	}
	return c.JSON(http.StatusOK, pp)
}

// GET <API_ROOT>/implementations
// Registered transfer implementations and the one configured per slot.
func (api *API) implementationsHandler(c echo.Context) error {
	ret := proto.Implementations{
		Names: implementation.Registered(),
		Slots: map[string]string{},
	}
	props := api.appCtx.Planner.Properties()
	for _, slot := range implementation.Slots() {
		ret.Slots[slot] = props.Impl(slot)
	}
	return c.JSON(http.StatusOK, ret)
}

// GET /version
func (api *API) versionHandler(c echo.Context) error {
	return c.String(http.StatusOK, v.Version())
}

// ------------------------------------------------------------------------- //

func handleError(err error, runId string, c echo.Context) error {
	ret := proto.Error{
		Message:    err.Error(),
		RunId:      runId,
		HTTPStatus: http.StatusInternalServerError,
	}

	switch errors.Cause(err).(type) {
	case serr.InvalidWorkflow, serr.MalformedURL, serr.MultipleFiles, serr.ContractViolation:
		ret.HTTPStatus = http.StatusBadRequest
	case serr.EntryNotFound, serr.SiteNotFound:
		ret.HTTPStatus = http.StatusNotFound
	}

	return c.JSON(ret.HTTPStatus, ret)
}
