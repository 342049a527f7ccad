// Copyright 2020, Square, Inc.

package job

import (
	"sort"
	"strings"
)

// A Namespace groups profile keys by who consumes them.
type Namespace string

const (
	ENV     Namespace = "env"     // environment of the job
	CONDOR  Namespace = "condor"  // submit file
	DAGMAN  Namespace = "dagman"  // DAG file
	PEGASUS Namespace = "pegasus" // planner hints
	GLOBUS  Namespace = "globus"  // RSL
)

var Namespaces = []Namespace{ENV, CONDOR, DAGMAN, PEGASUS, GLOBUS}

// Well-known profile keys.
const (
	// condor
	CONDOR_PRIORITY             = "priority"
	CONDOR_UNIVERSE             = "universe"
	CONDOR_TRANSFER_INPUT_FILES = "transfer_input_files"
	CONDOR_TRANSFER_EXECUTABLE  = "transfer_executable"
	CONDOR_NOOP_JOB             = "noop_job"
	CONDOR_NOOP_JOB_EXIT_CODE   = "noop_job_exit_code"
	CONDOR_REMOTE_INITIALDIR    = "remote_initialdir"

	// dagman
	DAGMAN_NOOP     = "NOOP"
	DAGMAN_CATEGORY = "CATEGORY"

	// pegasus
	PEGASUS_TRANSFER_THREADS   = "transfer.threads"
	PEGASUS_TRANSFER_ARGUMENTS = "transfer.arguments"
	PEGASUS_TRANSFER_PROXY     = "transfer.proxy"
	PEGASUS_STYLE              = "style"
	PEGASUS_GRIDSTART          = "gridstart"
	PEGASUS_WORKER_NODE        = "pegasus.worker.node.execution"

	// env
	ENV_PEGASUS_HOME    = "PEGASUS_HOME"
	ENV_GLOBUS_LOCATION = "GLOBUS_LOCATION"
	ENV_LD_LIBRARY_PATH = "LD_LIBRARY_PATH"
	ENV_X509_USER_PROXY = "X509_USER_PROXY"
	ENV_IRODS_ENV_FILE  = "IRODS_ENVIRONMENT_FILE"
	ENV_S3CFG           = "S3CFG"
	ENV_CREDENTIALS     = "PEGASUS_CREDENTIALS"
)

// Profiles are key-value settings per namespace. The zero value is an empty
// set ready to use through the pointer methods.
type Profiles map[Namespace]map[string]string

// ParseNamespace returns the namespace named s, case-insensitive.
func ParseNamespace(s string) (Namespace, error) {
	for _, ns := range Namespaces {
		if strings.EqualFold(string(ns), s) {
			return ns, nil
		}
	}
	return "", ErrUnknownNamespace
}

// Get returns the value of key in namespace ns.
func (p Profiles) Get(ns Namespace, key string) (string, bool) {
	v, ok := p[ns][key]
	return v, ok
}

// Has returns true if key is set in namespace ns.
func (p Profiles) Has(ns Namespace, key string) bool {
	_, ok := p[ns][key]
	return ok
}

// Set sets key in namespace ns, replacing any previous value.
func (p *Profiles) Set(ns Namespace, key, value string) {
	if *p == nil {
		*p = Profiles{}
	}
	if (*p)[ns] == nil {
		(*p)[ns] = map[string]string{}
	}
	(*p)[ns][key] = value
}

// SetIfAbsent sets key in namespace ns only if it is not already set.
func (p *Profiles) SetIfAbsent(ns Namespace, key, value string) {
	if p.Has(ns, key) {
		return
	}
	p.Set(ns, key, value)
}

// Delete removes key from namespace ns.
func (p Profiles) Delete(ns Namespace, key string) {
	delete(p[ns], key)
}

// AppendList adds item to the comma-separated list in key. An item already
// in the list is not added twice.
func (p *Profiles) AppendList(ns Namespace, key, item string) {
	v, ok := p.Get(ns, key)
	if !ok || v == "" {
		p.Set(ns, key, item)
		return
	}
	for _, have := range strings.Split(v, ",") {
		if strings.TrimSpace(have) == item {
			return
		}
	}
	p.Set(ns, key, v+","+item)
}

// Update overlays other onto p: on key collision the value from other wins.
// other is not modified.
func (p *Profiles) Update(other Profiles) {
	for ns, kv := range other {
		for k, v := range kv {
			p.Set(ns, k, v)
		}
	}
}

// Clone returns a deep copy.
func (p Profiles) Clone() Profiles {
	c := Profiles{}
	c.Update(p)
	return c
}

// Without returns a copy of p without the given keys in namespace ns.
func (p Profiles) Without(ns Namespace, keys ...string) Profiles {
	c := p.Clone()
	for _, k := range keys {
		c.Delete(ns, k)
	}
	return c
}

// Namespace returns a copy of the key-value pairs in ns.
func (p Profiles) Namespace(ns Namespace) map[string]string {
	m := make(map[string]string, len(p[ns]))
	for k, v := range p[ns] {
		m[k] = v
	}
	return m
}

// Keys returns the sorted keys set in ns.
func (p Profiles) Keys(ns Namespace) []string {
	keys := make([]string, 0, len(p[ns]))
	for k := range p[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
