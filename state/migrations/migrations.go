package migrations

import _ "embed"

// Migration represents a single SQL migration to apply in order.
type Migration struct {
	ID     string
	Script string
}

//go:embed 0001_builds.sql
var builds string

//go:embed 0002_log_uri.sql
var logURI string

// All lists migrations in application order.
var All = []Migration{
	{ID: "0001_builds", Script: builds},
	{ID: "0002_log_uri", Script: logURI},
}
