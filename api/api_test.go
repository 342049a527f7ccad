// Copyright 2017-2020, Square, Inc.

package api_test

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/xferplan/api"
	"github.com/square/xferplan/app"
	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/config"
	"github.com/square/xferplan/job"
	"github.com/square/xferplan/planner"
	"github.com/square/xferplan/proto"
	"github.com/square/xferplan/test"
	"github.com/square/xferplan/transfer/implementation"
	"github.com/square/xferplan/version"
)

var server *httptest.Server

func setup(t *testing.T, cfg config.Planner) {
	dir, err := ioutil.TempDir("", "xferplan-api")
	if err != nil {
		t.Fatal(err)
	}
	cfg.SubmitDir = dir
	sites := catalog.NewSites(
		&catalog.SiteEntry{
			Handle:        "local",
			SharedScratch: "/scratch/local",
			Profiles:      job.Profiles{job.ENV: {job.ENV_PEGASUS_HOME: "/usr/local/pegasus"}},
		},
		&catalog.SiteEntry{
			Handle:        "siteA",
			SharedScratch: "/scratch/siteA",
		},
	)
	appCtx := app.Defaults()
	appCtx.Config = cfg
	appCtx.Planner = planner.NewPlanner(cfg, sites, catalog.NewMemoryCatalog())
	server = httptest.NewServer(api.NewAPI(appCtx))
	t.Cleanup(func() {
		server.Close()
		os.RemoveAll(dir)
	})
}

func baseURL() string {
	return server.URL + api.API_ROOT
}

func workflow(site string) proto.Workflow {
	return proto.Workflow{
		Name: "one-job",
		Jobs: []proto.WorkflowJob{
			{
				Name:           "job1",
				Site:           site,
				Transformation: "job1",
				Uses: []proto.FileUse{
					{LFN: "f.a", Link: proto.LINK_INPUT, Sources: []job.URL{{Site: "local", PFN: "file:///data/f.a"}}},
				},
			},
		},
	}
}

func postPlan(t *testing.T, wf proto.Workflow, resp interface{}) (int, http.Header) {
	payload, err := json.Marshal(proto.PlanRequest{Workflow: wf})
	if err != nil {
		t.Fatal(err)
	}
	statusCode, headers, err := test.MakeHTTPRequest("POST", baseURL()+"plans", payload, resp)
	if err != nil {
		t.Fatal(err)
	}
	return statusCode, headers
}

func TestCreatePlan(t *testing.T) {
	setup(t, config.Planner{})

	var plan proto.Plan
	statusCode, headers := postPlan(t, workflow("local"), &plan)
	if statusCode != http.StatusOK {
		t.Fatalf("response status = %d, expected %d", statusCode, http.StatusOK)
	}
	if headers.Get(version.HEADER) != version.Version() {
		t.Errorf("got version header %q, expected %q", headers.Get(version.HEADER), version.Version())
	}
	if plan.RunId == "" {
		t.Error("no run id")
	}
	expectEdges := []proto.Edge{{Parent: "stage_in_local_local_job1_0", Child: "job1"}}
	if diff := deep.Equal(plan.Edges, expectEdges); diff != nil {
		t.Error(diff)
	}
	if len(plan.Jobs) != 2 {
		t.Fatalf("got %d jobs, expected 2", len(plan.Jobs))
	}
	tx := plan.Jobs[0]
	if tx.Class != job.EJobClass.StageIn().String() {
		t.Errorf("got class %s, expected %s", tx.Class, job.EJobClass.StageIn())
	}
	if tx.Transformation != "pegasus::transfer" {
		t.Errorf("got transformation %s, expected pegasus::transfer", tx.Transformation)
	}
}

func TestCreatePlanErrors(t *testing.T) {
	setup(t, config.Planner{})

	bad := workflow("local")
	bad.Jobs[0].Uses[0].Link = "inout"

	// siteA has no PEGASUS_HOME: no default entry for pegasus-transfer
	noEntry := workflow("siteA")

	noSite := workflow("siteZ")

	tests := []struct {
		wf     proto.Workflow
		status int
	}{
		{bad, http.StatusBadRequest},
		{noEntry, http.StatusNotFound},
		{noSite, http.StatusNotFound},
	}
	for _, tt := range tests {
		var perr proto.Error
		statusCode, _ := postPlan(t, tt.wf, &perr)
		if statusCode != tt.status {
			t.Errorf("%s: response status = %d, expected %d", perr.Message, statusCode, tt.status)
		}
		if perr.HTTPStatus != tt.status {
			t.Errorf("got error status %d, expected %d", perr.HTTPStatus, tt.status)
		}
		if perr.Message == "" {
			t.Error("no error message")
		}
	}
}

func TestCreatePlanUnknownImplementation(t *testing.T) {
	cfg := config.Planner{}
	cfg.Transfer.Impl.StageOut = "RFT"
	setup(t, cfg)

	var perr proto.Error
	statusCode, _ := postPlan(t, workflow("local"), &perr)
	if statusCode != http.StatusInternalServerError {
		t.Errorf("response status = %d, expected %d", statusCode, http.StatusInternalServerError)
	}
}

func TestCreatePlanContractViolation(t *testing.T) {
	// Condor only stages in files of the submit host
	cfg := config.Planner{}
	cfg.Transfer.Impl.StageIn = "Condor"
	setup(t, cfg)

	wf := workflow("local")
	wf.Jobs[0].Uses[0].Sources = []job.URL{{Site: "local", PFN: "gsiftp://host/data/f.a"}}
	var perr proto.Error
	statusCode, _ := postPlan(t, wf, &perr)
	if statusCode != http.StatusBadRequest {
		t.Errorf("%s: response status = %d, expected %d", perr.Message, statusCode, http.StatusBadRequest)
	}
	if perr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("got error status %d, expected %d", perr.HTTPStatus, http.StatusBadRequest)
	}
}

func TestImplementations(t *testing.T) {
	cfg := config.Planner{}
	cfg.Transfer.Impl.StageIn = "GUC"
	setup(t, cfg)

	var impls proto.Implementations
	statusCode, _, err := test.MakeHTTPRequest("GET", baseURL()+"implementations", nil, &impls)
	if err != nil {
		t.Fatal(err)
	}
	if statusCode != http.StatusOK {
		t.Errorf("response status = %d, expected %d", statusCode, http.StatusOK)
	}
	expect := proto.Implementations{
		Names: implementation.Registered(),
		Slots: map[string]string{
			config.SLOT_STAGE_IN:  "GUC",
			config.SLOT_INTER:     config.DEFAULT_IMPL,
			config.SLOT_STAGE_OUT: config.DEFAULT_IMPL,
			config.SLOT_SETUP:     config.DEFAULT_IMPL,
			config.SLOT_SYMLINK:   config.DEFAULT_IMPL,
		},
	}
	if diff := deep.Equal(impls, expect); diff != nil {
		t.Error(diff)
	}
}

func TestVersion(t *testing.T) {
	setup(t, config.Planner{})

	res, err := http.Get(server.URL + "/version")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := ioutil.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != version.Version() {
		t.Errorf("got version %q, expected %q", body, version.Version())
	}
}
