// Package services is the application core: the sync engine with its
// bootstrap, incremental and import runs, plus the query, maintenance,
// settings and scheduler services. Services talk to the outside only
// through driven ports.
package services
