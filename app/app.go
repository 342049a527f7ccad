// Copyright 2017-2020, Square, Inc.

// Package app provides the app context: the config, the catalogs, and the
// hooks and factories that make them. Replace a hook or factory to change how
// xferplan is set up without changing the rest of the code.
package app

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"

	"github.com/square/xferplan/catalog"
	"github.com/square/xferplan/config"
	"github.com/square/xferplan/planner"
	"github.com/square/xferplan/retry"
	"github.com/square/xferplan/util"
)

type Context struct {
	Hooks     Hooks
	Factories Factories

	// Config file, if set by the user. Else LoadConfig picks one by the
	// ENVIRONMENT env var.
	ConfigFile string

	Config  config.Planner
	Sites   catalog.SiteStore
	TC      catalog.TransformationCatalog
	Planner *planner.Planner
}

type Factories struct {
	MakeSiteStore             func(Context) (catalog.SiteStore, error)
	MakeTransformationCatalog func(Context) (catalog.TransformationCatalog, error)
	MakeDB                    func(Context) (*sql.DB, error)
}

type Hooks struct {
	LoadConfig func(Context) (config.Planner, error)
}

func Defaults() Context {
	return Context{
		Factories: Factories{
			MakeSiteStore:             MakeSiteStore,
			MakeTransformationCatalog: MakeTransformationCatalog,
			MakeDB:                    MakeDB,
		},
		Hooks: Hooks{
			LoadConfig: LoadConfig,
		},
	}
}

// Boot loads the config and makes the catalogs and the planner.
func (ctx *Context) Boot() error {
	cfg, err := ctx.Hooks.LoadConfig(*ctx)
	if err != nil {
		return fmt.Errorf("error loading config: %s", err)
	}
	cfg.SetDefaults()
	ctx.Config = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %s", cfg.Log.Level, err)
	}
	log.SetLevel(level)

	sites, err := ctx.Factories.MakeSiteStore(*ctx)
	if err != nil {
		return fmt.Errorf("MakeSiteStore: %s", err)
	}
	ctx.Sites = sites

	tc, err := ctx.Factories.MakeTransformationCatalog(*ctx)
	if err != nil {
		return fmt.Errorf("MakeTransformationCatalog: %s", err)
	}
	ctx.TC = tc

	ctx.Planner = planner.NewPlanner(cfg, sites, tc)
	return nil
}

func LoadConfig(ctx Context) (config.Planner, error) {
	cfgFile := ctx.ConfigFile
	if cfgFile == "" {
		switch os.Getenv("ENVIRONMENT") {
		case "staging":
			cfgFile = "config/staging.yaml"
		case "production":
			cfgFile = "config/production.yaml"
		default:
			cfgFile = "config/development.yaml"
		}
	}
	var cfg config.Planner
	err := config.Load(cfgFile, &cfg)
	return cfg, err
}

// MakeSiteStore loads the site catalog file. Without one, the only site is
// the submit host.
func MakeSiteStore(ctx Context) (catalog.SiteStore, error) {
	if ctx.Config.Catalog.Sites == "" {
		log.Warn("no site catalog configured, only the local site is known")
		return catalog.NewSites(), nil
	}
	return catalog.LoadSites(ctx.Config.Catalog.Sites)
}

// MakeTransformationCatalog makes the configured catalog backend and puts
// an LRU cache in front of it.
func MakeTransformationCatalog(ctx Context) (catalog.TransformationCatalog, error) {
	tcfg := ctx.Config.Catalog.Transformations
	var tc catalog.TransformationCatalog
	switch tcfg.Type {
	case "file", "":
		if tcfg.File == "" {
			tc = catalog.NewMemoryCatalog()
			break
		}
		mc, err := catalog.LoadTransformations(tcfg.File)
		if err != nil {
			return nil, err
		}
		tc = mc
	case "mysql":
		db, err := ctx.Factories.MakeDB(ctx)
		if err != nil {
			return nil, err
		}
		tc = catalog.NewMySQLCatalog(db)
	default:
		return nil, fmt.Errorf("unknown transformation catalog type %q, expected file or mysql", tcfg.Type)
	}
	return catalog.NewCachedCatalog(tc, tcfg.CacheSize, tcfg.CacheTTL), nil
}

// Upper bound of the doubling wait between database connect attempts.
const maxConnectWait = 30 * time.Second

// MakeDB opens the transformation catalog database and waits for it to be
// reachable.
func MakeDB(ctx Context) (*sql.DB, error) {
	tcfg := ctx.Config.Catalog.Transformations
	dsn := tcfg.DSN + "?parseTime=true" // always needs to be set
	if tcfg.TLS.CertFile != "" && tcfg.TLS.KeyFile != "" {
		tlsConfig, err := util.NewTLSConfig(tcfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("error loading database TLS config: %s", err)
		}
		if err := mysql.RegisterTLSConfig("custom", tlsConfig); err != nil {
			return nil, fmt.Errorf("error registering database TLS config: %s", err)
		}
		dsn += "&tls=custom"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("error creating sql.DB: %s", err)
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(12 * time.Hour)

	err = retry.Do(tcfg.ConnectRetries, tcfg.ConnectWait, maxConnectWait, db.Ping, func(attempt int, err error) {
		log.Warnf("cannot connect to transformation catalog database (attempt %d of %d): %s", attempt, tcfg.ConnectRetries, err)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot connect to transformation catalog database: %s", err)
	}
	return db, nil
}
