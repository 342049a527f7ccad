// Copyright 2020, Square, Inc.

package app_test

import (
	"database/sql"
	"fmt"
	"io/ioutil"
	"os"
	"testing"

	"github.com/square/xferplan/app"
	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/config"
)

func writeConfig(t *testing.T, content string) string {
	f, err := ioutil.TempFile("", "xferplan-app")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestBoot(t *testing.T) {
	ctx := app.Defaults()
	ctx.ConfigFile = writeConfig(t, `
catalog:
  sites: ../catalog/test/sites.yaml
  transformations:
    file: ../catalog/test/tc.yaml
`)
	if err := ctx.Boot(); err != nil {
		t.Fatal(err)
	}
	if ctx.Config.Transfer.Impl.StageIn != config.DEFAULT_IMPL {
		t.Errorf("defaults not set: stage-in impl %q", ctx.Config.Transfer.Impl.StageIn)
	}
	if _, ok := ctx.Sites.Lookup("siteA"); !ok {
		t.Error("siteA not in site catalog")
	}
	if _, ok := ctx.TC.(*catalog.CachedCatalog); !ok {
		t.Errorf("got %T, expected *catalog.CachedCatalog", ctx.TC)
	}
	if ctx.Planner == nil {
		t.Error("planner not set")
	}
}

func TestBootErrors(t *testing.T) {
	tests := []string{
		"log:\n  level: loud\n",
		"catalog:\n  sites: /nonexistent/sites.yaml\n",
		"catalog:\n  transformations:\n    type: ldap\n",
		"catalog:\n  transformations:\n    file: /nonexistent/tc.yaml\n",
	}
	for _, content := range tests {
		ctx := app.Defaults()
		ctx.ConfigFile = writeConfig(t, content)
		if err := ctx.Boot(); err == nil {
			t.Errorf("no error for config %q, expected one", content)
		}
	}

	ctx := app.Defaults()
	ctx.ConfigFile = "/nonexistent/config.yaml"
	if err := ctx.Boot(); err == nil {
		t.Error("no error for missing config file, expected one")
	}
}

func TestBootMySQL(t *testing.T) {
	ctx := app.Defaults()
	ctx.ConfigFile = writeConfig(t, "catalog:\n  transformations:\n    type: mysql\n")
	errDB := fmt.Errorf("db down")
	ctx.Factories.MakeDB = func(app.Context) (*sql.DB, error) {
		return nil, errDB
	}
	if err := ctx.Boot(); err == nil {
		t.Error("no error when the database is down, expected one")
	}
}
