// Copyright 2017-2020, Square, Inc.

package config

import (
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/square/xferplan/credential"
	"github.com/square/xferplan/job"
)

///////////////////////////////////////////////////////////////////////////////
// High-Level Config Structs
///////////////////////////////////////////////////////////////////////////////

// The config used by xferplan, both the CLI and the API server. This is read
// from in app.LoadConfig.
type Planner struct {
	// The config that the API web server will run with.
	Server Server `yaml:"server"`

	// Logging config.
	Log Log `yaml:"log"`

	// Directory where transfer job manifests (stdin files) are written.
	// Each planning run writes into its own subdirectory named by run id.
	SubmitDir string `yaml:"submit_dir"`

	// Site and transformation catalogs.
	Catalog Catalog `yaml:"catalog"`

	// Transfer tunables: implementations, priorities, tool arguments.
	Transfer Transfer `yaml:"transfer"`

	// Profiles set by the properties file, namespace => key => value. They
	// override site and transformation catalog profiles.
	Profiles job.Profiles `yaml:"profiles"`
}

///////////////////////////////////////////////////////////////////////////////
// Config Components
///////////////////////////////////////////////////////////////////////////////

// Configuration for a web server.
type Server struct {
	// The address the server will listen on (ex: "127.0.0.1:80").
	Addr string `yaml:"addr"`

	// The TLS config used by the server.
	TLS TLS `yaml:"tls"`
}

// TLS configuration.
type TLS struct {
	// The certificate file to use.
	CertFile string `yaml:"cert_file"`

	// The key file to use.
	KeyFile string `yaml:"key_file"`

	// The CA file to use.
	CAFile string `yaml:"ca_file"`
}

type Log struct {
	// A logrus level: debug, info, warning, error.
	Level string `yaml:"level"`
}

type Catalog struct {
	// Site catalog YAML file.
	Sites string `yaml:"sites"`

	Transformations TransformationCatalog `yaml:"transformations"`
}

// Configuration for the transformation catalog.
type TransformationCatalog struct {
	// Backend type: file or mysql.
	Type string `yaml:"type"`

	// YAML file, if Type is file.
	File string `yaml:"file"`

	// MySQL DSN, if Type is mysql. If a TLS config is specified, it is
	// appended to the DSN automatically.
	DSN string `yaml:"dsn"`
	TLS TLS    `yaml:"tls"`

	// How many times to try connecting to MySQL on startup, and how long to
	// wait between tries.
	ConnectRetries int           `yaml:"connect_retries"`
	ConnectWait    time.Duration `yaml:"connect_wait"`

	// Lookups are cached in an LRU of this many entries. Zero TTL caches
	// until evicted.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type Transfer struct {
	// Transfer implementation name per job purpose. Empty means Transfer.
	Impl Impl `yaml:"impl"`

	// Scheduler priority per transfer class. Empty means not set.
	Priority Priority `yaml:"priority"`

	// Sites where chmod jobs are replaced with noop jobs, whitespace or comma
	// separated. "*" means all sites.
	ChmodDisabledSites string `yaml:"chmod_disabled_sites"`

	// Sites for which transfer jobs run on the submit host.
	ThirdPartySites []string `yaml:"third_party_sites"`

	// Number of transfer jobs per site and direction for one compute job.
	Bundle int `yaml:"bundle"`

	// Tool tunables. Kept as strings: they are passed through to arguments.
	Threads   string `yaml:"threads"`
	Processes string `yaml:"processes"`
	Streams   string `yaml:"streams"`
	Force     bool   `yaml:"force"`

	// Extra arguments for every transfer job. A pegasus transfer.arguments
	// profile overrides it.
	Arguments string `yaml:"arguments"`

	// URL of the worker package tarball on the submit host. If set, it is
	// staged once to every remote site that runs compute jobs.
	WorkerPackage string `yaml:"worker_package"`

	// Local credential files shipped with transfer jobs when needed.
	Credentials credential.Files `yaml:"credentials"`
}

type Impl struct {
	StageIn  string `yaml:"stage_in"`
	Inter    string `yaml:"inter"`
	StageOut string `yaml:"stage_out"`
	Setup    string `yaml:"setup"`
	Symlink  string `yaml:"symlink"`
}

type Priority struct {
	StageIn  string `yaml:"stage_in"`
	StageOut string `yaml:"stage_out"`
	Inter    string `yaml:"inter"`
}

///////////////////////////////////////////////////////////////////////////////
// Defaults
///////////////////////////////////////////////////////////////////////////////

const (
	DEFAULT_IMPL            = "Transfer"
	DEFAULT_LOG_LEVEL       = "info"
	DEFAULT_PROCESSES       = "4"
	DEFAULT_STREAMS         = "1"
	DEFAULT_CACHE_SIZE      = 1024
	DEFAULT_CONNECT_RETRIES = 5
	DEFAULT_CONNECT_WAIT    = 2 * time.Second
)

// SetDefaults sets zero-value fields to their defaults.
func (c *Planner) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:9440"
	}
	if c.Log.Level == "" {
		c.Log.Level = DEFAULT_LOG_LEVEL
	}
	if c.SubmitDir == "" {
		c.SubmitDir = "."
	}

	tc := &c.Catalog.Transformations
	if tc.Type == "" {
		tc.Type = "file"
	}
	if tc.CacheSize == 0 {
		tc.CacheSize = DEFAULT_CACHE_SIZE
	}
	if tc.ConnectRetries == 0 {
		tc.ConnectRetries = DEFAULT_CONNECT_RETRIES
	}
	if tc.ConnectWait == 0 {
		tc.ConnectWait = DEFAULT_CONNECT_WAIT
	}

	t := &c.Transfer
	for _, impl := range []*string{&t.Impl.StageIn, &t.Impl.Inter, &t.Impl.StageOut, &t.Impl.Setup, &t.Impl.Symlink} {
		if *impl == "" {
			*impl = DEFAULT_IMPL
		}
	}
	if t.Bundle < 1 {
		t.Bundle = 1
	}
	if t.Processes == "" {
		t.Processes = DEFAULT_PROCESSES
	}
	if t.Streams == "" {
		t.Streams = DEFAULT_STREAMS
	}
}

///////////////////////////////////////////////////////////////////////////////
// Loading Config
///////////////////////////////////////////////////////////////////////////////

// Load loads a configuration file into the struct pointed to by the
// configStruct argument.
func Load(configFile string, configStruct interface{}) error {
	// Make sure the file exists.
	_, err := os.Stat(configFile)
	if err != nil {
		return err
	}

	// Read the file.
	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}

	// Unmarshal the contents of the file into the provided struct.
	err = yaml.Unmarshal(data, configStruct)
	if err != nil {
		return err
	}

	return nil
}
