/*
Copyright 2017-2020, Square, Inc.

Package config provides the ability to load config files into predefined
structures that are used by xferplan. The CLI and the API server both use the
Planner struct, loaded in app.LoadConfig. It provides all of the config
information needed to plan transfers.

Types of config structs provided by this package:

* Planner: all of the config needed to plan a workflow and run the API

  - Server: the configuration for running a webserver (ex: the listen address the
    server should run on, the TLS config the server should run with, etc.)

  - Catalog, TransformationCatalog: where the site and transformation catalogs
    come from (ex: a YAML file, or a MySQL DSN and its TLS config)

  - Transfer: transfer implementation per job purpose, priorities, chmod-disabled
    sites, and tool tunables

  - TLS: the configuration for constructing a Go tls.Config (ex: the CA cert file
    to use, the key file to use, etc.)

Properties wraps a loaded Planner as the read-only settings accessor that
transfer implementations consult while building jobs.
*/
package config
