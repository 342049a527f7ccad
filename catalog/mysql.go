// Copyright 2020, Square, Inc.

package catalog

import (
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// MySQLCatalog is a TransformationCatalog stored in MySQL. The table is
// created by resources/tc.sql. Profiles and notifications are stored as JSON.
type MySQLCatalog struct {
	db *sql.DB
}

func NewMySQLCatalog(db *sql.DB) *MySQLCatalog {
	return &MySQLCatalog{
		db: db,
	}
}

func (c *MySQLCatalog) Lookup(ns, name, version, site string, t EntryType) ([]*TransformationEntry, error) {
	q := "SELECT namespace, name, version, site, type, pfn, sysinfo, profiles, notifications" +
		" FROM transformations WHERE namespace = ? AND name = ? AND version = ? AND site = ? AND type = ?"
	rows, err := c.db.Query(q, ns, name, version, site, string(t))
	if err != nil {
		return nil, errors.Wrap(err, "querying transformation catalog")
	}
	defer rows.Close()

	entries := []*TransformationEntry{}
	for rows.Next() {
		var e TransformationEntry
		var profiles, notifications []byte
		if err := rows.Scan(&e.Namespace, &e.Name, &e.Version, &e.Site, &e.Type, &e.PhysicalPath,
			&e.SysInfo, &profiles, &notifications); err != nil {
			return nil, errors.Wrap(err, "scanning transformation catalog row")
		}
		if len(profiles) > 0 {
			if err := json.Unmarshal(profiles, &e.Profiles); err != nil {
				return nil, errors.Wrapf(err, "decoding profiles of %s at %s", e.CompleteName(), e.Site)
			}
		}
		if len(notifications) > 0 {
			if err := json.Unmarshal(notifications, &e.Notifications); err != nil {
				return nil, errors.Wrapf(err, "decoding notifications of %s at %s", e.CompleteName(), e.Site)
			}
		}
		entries = append(entries, &e)
	}
	return entries, errors.Wrap(rows.Err(), "reading transformation catalog")
}

func (c *MySQLCatalog) Insert(e *TransformationEntry, overwrite bool) error {
	profiles, err := json.Marshal(e.Profiles)
	if err != nil {
		return err
	}
	notifications, err := json.Marshal(e.Notifications)
	if err != nil {
		return err
	}

	verb := "INSERT IGNORE"
	if overwrite {
		verb = "REPLACE"
	}
	q := verb + " INTO transformations" +
		" (namespace, name, version, site, type, pfn, sysinfo, profiles, notifications)" +
		" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := c.db.Exec(q, e.Namespace, e.Name, e.Version, e.Site, string(e.Type), e.PhysicalPath,
		e.SysInfo, profiles, notifications)
	if err != nil {
		return errors.Wrapf(err, "inserting %s at %s", e.CompleteName(), e.Site)
	}
	if overwrite {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryExists
	}
	return nil
}
