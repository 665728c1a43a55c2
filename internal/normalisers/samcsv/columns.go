package samcsv

import (
	"strings"
	"unicode"
)

// Canonical column names of the Contract Opportunities extract.
const (
	ColNoticeID           = "NoticeId"
	ColTitle              = "Title"
	ColSolicitation       = "Sol#"
	ColAgency             = "Department/Ind.Agency"
	ColSubTier            = "Sub-Tier"
	ColOffice             = "Office"
	ColPostedDate         = "PostedDate"
	ColType               = "Type"
	ColBaseType           = "BaseType"
	ColArchiveType        = "ArchiveType"
	ColArchiveDate        = "ArchiveDate"
	ColSetAside           = "SetASide"
	ColResponseDeadline   = "ResponseDeadLine"
	ColNAICS              = "NaicsCode"
	ColPopCity            = "PopCity"
	ColPopCountry         = "PopCountry"
	ColActive             = "Active"
	ColAwardNumber        = "AwardNumber"
	ColAwardDate          = "AwardDate"
	ColAwardAmount        = "Award$"
	ColAwardee            = "Awardee"
	ColContactName        = "PrimaryContactFullName"
	ColContactEmail       = "PrimaryContactEmail"
	ColCountryCode        = "CountryCode"
	ColAdditionalInfoLink = "AdditionalInfoLink"
	ColLink               = "Link"
	ColDescription        = "Description"
)

// RequiredColumns must be present in every extract header.
var RequiredColumns = []string{ColTitle, ColPostedDate, ColPopCountry}

// headerVariants maps historical header spellings, reduced by headerKey,
// to canonical column names. Canonical names map to themselves.
var headerVariants = func() map[string]string {
	m := map[string]string{
		"noticeidnumber":            ColNoticeID,
		"noticeidno":                ColNoticeID,
		"documentid":                ColNoticeID,
		"opportunityid":             ColNoticeID,
		"solicitationnumber":        ColSolicitation,
		"solnumber":                 ColSolicitation,
		"department":                ColAgency,
		"agency":                    ColAgency,
		"posted":                    ColPostedDate,
		"awardamount":               ColAwardAmount,
		"placeofperformancecountry": ColPopCountry,
	}
	for _, c := range []string{
		ColNoticeID, ColTitle, ColSolicitation, ColAgency, ColSubTier, ColOffice,
		ColPostedDate, ColType, ColBaseType, ColArchiveType, ColArchiveDate,
		ColSetAside, ColResponseDeadline, ColNAICS, ColPopCity, ColPopCountry,
		ColActive, ColAwardNumber, ColAwardDate, ColAwardAmount, ColAwardee,
		ColContactName, ColContactEmail, ColCountryCode, ColAdditionalInfoLink,
		ColLink, ColDescription,
	} {
		m[headerKey(c)] = c
	}
	return m
}()

// CanonicalHeader returns the canonical column name for a raw header,
// or the trimmed header itself when it is not a known column.
func CanonicalHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	if c, ok := headerVariants[headerKey(h)]; ok {
		return c
	}
	return h
}

// headerKey lower-cases and keeps only letters and digits.
func headerKey(h string) string {
	var b strings.Builder
	for _, r := range h {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
