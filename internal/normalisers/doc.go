// Package normalisers holds the ExtractReader and Normaliser
// implementations. samcsv handles the SAM.gov contract-opportunity CSV.
package normalisers
