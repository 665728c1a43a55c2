// Package connectors holds the Fetcher implementations that produce CSV
// extracts. samgov downloads from the SAM.gov file-extract service and its
// S3 mirrors; local reads extracts already on disk.
package connectors
