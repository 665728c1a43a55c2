// Package samgov downloads Contract Opportunities extracts from the SAM.gov
// file extract service and its S3 mirrors.
//
// Fiscal year archives are immutable once published, so a completed archive
// in the cache directory is reused without a request. Interrupted downloads
// are kept as <name>.part and resumed with an HTTP Range request.
//
// The latest extract is requested with If-Modified-Since. A 304 response, or
// a successful response with an empty body, yields an empty extract. Each
// downloaded latest extract is also kept as a dated copy; older copies
// beyond the configured count are pruned.
package samgov
