// Copyright 2017-2020, Square, Inc.

package config_test

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/square/xferplan/config"
	"github.com/square/xferplan/job"
)

func createTempFile(t *testing.T, content []byte) string {
	tmpfile, err := ioutil.TempFile("", "for_test")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tmpfile.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	return tmpfile.Name()
}

func TestLoadConfigFileNotExist(t *testing.T) {
	// Config file doesn't exist.
	err := config.Load("nonexistant_file.txt", nil)
	if !os.IsNotExist(err) {
		t.Errorf("expected a 'file does not exist' error, did not get one")
	}
}

func TestLoadConfigBadContent(t *testing.T) {
	// Config file exists, but contains bad content.
	content := []byte("%%---invalid_yaml")
	fileName := createTempFile(t, content)
	defer os.Remove(fileName)

	var actualConfig config.Planner
	err := config.Load(fileName, &actualConfig)
	if err == nil {
		t.Error("expected an error, did not get one")
	}
}

func TestLoadConfigPlanner(t *testing.T) {
	content := []byte(`
---
server:
  addr: ":9440"
submit_dir: /var/lib/xferplan
catalog:
  sites: config/sites.yaml
  transformations:
    type: mysql
    dsn: root:@tcp(localhost:3306)/tc
    connect_wait: 5s
transfer:
  impl:
    stage_in: GUC
  priority:
    stage_in: "10"
  chmod_disabled_sites: "siteA siteB"
  threads: "4"
  worker_package: file:///opt/pegasus/worker.tar.gz
profiles:
  env:
    FOO: props
`)
	fileName := createTempFile(t, content)
	defer os.Remove(fileName)

	var actualConfig config.Planner
	err := config.Load(fileName, &actualConfig)
	if err != nil {
		t.Errorf("err = %s, expected nil", err)
	}

	expectedConfig := config.Planner{
		Server: config.Server{
			Addr: ":9440",
		},
		SubmitDir: "/var/lib/xferplan",
		Catalog: config.Catalog{
			Sites: "config/sites.yaml",
			Transformations: config.TransformationCatalog{
				Type:        "mysql",
				DSN:         "root:@tcp(localhost:3306)/tc",
				ConnectWait: 5 * time.Second,
			},
		},
		Transfer: config.Transfer{
			Impl:               config.Impl{StageIn: "GUC"},
			Priority:           config.Priority{StageIn: "10"},
			ChmodDisabledSites: "siteA siteB",
			Threads:            "4",
			WorkerPackage:      "file:///opt/pegasus/worker.tar.gz",
		},
		Profiles: job.Profiles{job.ENV: {"FOO": "props"}},
	}

	if diff := deep.Equal(actualConfig, expectedConfig); diff != nil {
		t.Error(diff)
	}
}

func TestSetDefaults(t *testing.T) {
	cfg := config.Planner{
		Transfer: config.Transfer{
			Impl: config.Impl{StageIn: "GUC"},
		},
	}
	cfg.SetDefaults()

	if cfg.Transfer.Impl.StageIn != "GUC" {
		t.Errorf("stage_in impl = %s, expected GUC", cfg.Transfer.Impl.StageIn)
	}
	expectImpl := config.Impl{
		StageIn:  "GUC",
		Inter:    config.DEFAULT_IMPL,
		StageOut: config.DEFAULT_IMPL,
		Setup:    config.DEFAULT_IMPL,
		Symlink:  config.DEFAULT_IMPL,
	}
	if diff := deep.Equal(cfg.Transfer.Impl, expectImpl); diff != nil {
		t.Error(diff)
	}
	if cfg.Transfer.Bundle != 1 {
		t.Errorf("bundle = %d, expected 1", cfg.Transfer.Bundle)
	}
	if cfg.Catalog.Transformations.Type != "file" {
		t.Errorf("tc type = %s, expected file", cfg.Catalog.Transformations.Type)
	}
	if cfg.Log.Level != config.DEFAULT_LOG_LEVEL {
		t.Errorf("log level = %s, expected %s", cfg.Log.Level, config.DEFAULT_LOG_LEVEL)
	}
}

func TestLoadDevelopmentConfig(t *testing.T) {
	var cfg config.Planner
	if err := config.Load("development.yaml", &cfg); err != nil {
		t.Fatal(err)
	}
	p := config.NewProperties(cfg)
	if got := p.Impl(config.SLOT_INTER); got != "TPTTransfer" {
		t.Errorf("inter impl = %s, expected TPTTransfer", got)
	}
	if p.Bundle() != 2 {
		t.Errorf("bundle = %d, expected 2", p.Bundle())
	}
}

func TestProperties(t *testing.T) {
	cfg := config.Planner{
		Transfer: config.Transfer{
			Impl:            config.Impl{Inter: "GUC"},
			Priority:        config.Priority{StageIn: "10", StageOut: "20"},
			ThirdPartySites: []string{"siteA"},
			Threads:         "8",
			Arguments:       "--debug",
		},
		Profiles: job.Profiles{job.PEGASUS: {job.PEGASUS_TRANSFER_THREADS: "3"}},
	}
	p := config.NewProperties(cfg)

	if got := p.Priority(job.EJobClass.StageOut()); got != "20" {
		t.Errorf("stage-out priority = %s, expected 20", got)
	}
	if got := p.Priority(job.EJobClass.InterPool()); got != "" {
		t.Errorf("inter priority = %s, expected empty", got)
	}
	if got := p.Priority(job.EJobClass.Compute()); got != "" {
		t.Errorf("compute priority = %s, expected empty", got)
	}
	if got := p.Impl(config.SLOT_INTER); got != "GUC" {
		t.Errorf("inter impl = %s, expected GUC", got)
	}
	if got := p.Impl(config.SLOT_SYMLINK); got != config.DEFAULT_IMPL {
		t.Errorf("symlink impl = %s, expected %s", got, config.DEFAULT_IMPL)
	}
	if !p.ThirdPartySite("siteA") || p.ThirdPartySite("siteB") {
		t.Error("third party sites wrong")
	}
	if p.Processes() != config.DEFAULT_PROCESSES || p.Streams() != config.DEFAULT_STREAMS {
		t.Errorf("processes/streams = %s/%s, expected defaults", p.Processes(), p.Streams())
	}

	// Profiles section wins over the transfer section
	expect := job.Profiles{job.PEGASUS: {
		job.PEGASUS_TRANSFER_THREADS:   "3",
		job.PEGASUS_TRANSFER_ARGUMENTS: "--debug",
	}}
	if diff := deep.Equal(p.Profiles(), expect); diff != nil {
		t.Error(diff)
	}

	// Profiles returns a copy
	c := p.Profiles()
	c.Set(job.ENV, "X", "1")
	if p.Profiles().Has(job.ENV, "X") {
		t.Error("Profiles did not return a copy")
	}
}
