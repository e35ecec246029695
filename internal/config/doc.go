// Package config loads the libraryd configuration and opens what it describes:
// the database connection the store runs on, the redis client of the summary cache
// and the slog logger.
//
// Values come from built-in defaults, then an optional YAML file, then LIBRARY_*
// environment variables, in that order.
package config
