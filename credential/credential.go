// Copyright 2020, Square, Inc.

// Package credential maps URLs to the credential a transfer tool needs to
// access them and tracks the local credential files shipped with jobs.
package credential

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/JeffreyRichter/enum/enum"
)

// Type is a kind of credential.
type Type uint8

var EType = Type(0)

func (Type) None() Type  { return Type(0) }
func (Type) X509() Type  { return Type(1) }
func (Type) S3() Type    { return Type(2) }
func (Type) Irods() Type { return Type(3) }
func (Type) SSH() Type   { return Type(4) }

func (t *Type) Parse(s string) error {
	val, err := enum.Parse(reflect.TypeOf(t), s, true)
	if err == nil {
		*t = val.(Type)
	}
	return err
}

func (t Type) String() string {
	return enum.StringInt(t, reflect.TypeOf(t))
}

func (t Type) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// schemes maps URL schemes to the credential they need. Schemes not listed
// need none.
var schemes = map[string]Type{
	"gsiftp":  EType.X509(),
	"gridftp": EType.X509(),
	"srm":     EType.X509(),
	"xroot":   EType.X509(),
	"s3":      EType.S3(),
	"s3s":     EType.S3(),
	"irods":   EType.Irods(),
	"scp":     EType.SSH(),
	"sftp":    EType.SSH(),
}

// ForURL returns the credential needed to access url.
func ForURL(url string) Type {
	i := strings.Index(url, "://")
	if i < 1 {
		return EType.None()
	}
	if t, ok := schemes[strings.ToLower(url[:i])]; ok {
		return t
	}
	return EType.None()
}

// Files are paths of credential files on the submit host.
type Files struct {
	Proxy    string `yaml:"proxy"`
	S3cfg    string `yaml:"s3cfg"`
	IrodsEnv string `yaml:"irods_env"`
	Pegasus  string `yaml:"pegasus"`
}

// Existing returns a copy of f without the paths that do not exist. missing
// is called for each path that was dropped.
func (f Files) Existing(missing func(kind, path string)) Files {
	check := func(kind, path string) string {
		if path == "" {
			return ""
		}
		if _, err := os.Stat(path); err != nil {
			if missing != nil {
				missing(kind, path)
			}
			return ""
		}
		return path
	}
	return Files{
		Proxy:    check("proxy", f.Proxy),
		S3cfg:    check("s3cfg", f.S3cfg),
		IrodsEnv: check("irods_env", f.IrodsEnv),
		Pegasus:  check("pegasus", f.Pegasus),
	}
}

// Basename returns the file name of path, or "" if path is empty.
func Basename(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
