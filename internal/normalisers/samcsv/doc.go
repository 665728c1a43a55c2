// Package samcsv reads SAM.gov Contract Opportunities CSV extracts and
// normalises their rows into opportunity records.
//
// Normalisation keeps only rows whose place of performance resolves,
// by exact match on a normalised spelling, to one of the 54 African
// countries. Each kept row gets a stable identifier: the extract's
// NoticeId when present, otherwise a content fingerprint.
package samcsv
