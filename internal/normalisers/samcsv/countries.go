package samcsv

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Country is one of the 54 African countries recognised by the normaliser.
type Country struct {
	Code    string
	Name    string
	Aliases []string
}

// africanCountries lists every canonical code with its known spellings.
// The code itself and the name are always accepted.
var africanCountries = []Country{
	// North Africa
	{"DZA", "Algeria", []string{"Algerie", "People's Democratic Republic of Algeria"}},
	{"EGY", "Egypt", []string{"Arab Republic of Egypt", "Egypte"}},
	{"LBY", "Libya", []string{"Libyan Arab Jamahiriya", "Libye", "State of Libya"}},
	{"MAR", "Morocco", []string{"Maroc", "Kingdom of Morocco"}},
	{"SDN", "Sudan", []string{"Soudan", "Republic of the Sudan", "Republic of Sudan"}},
	{"TUN", "Tunisia", []string{"Tunisie", "Republic of Tunisia"}},

	// West Africa
	{"BEN", "Benin", []string{"Dahomey", "Republic of Benin"}},
	{"BFA", "Burkina Faso", []string{"Upper Volta", "Haute-Volta"}},
	{"CPV", "Cape Verde", []string{"Cabo Verde", "Cape Verde Islands", "Cap-Vert"}},
	{"CIV", "Côte d'Ivoire", []string{"Cote dIvoire", "Cote d Ivoire", "Ivory Coast", "Republic of Cote d'Ivoire"}},
	{"GMB", "Gambia", []string{"The Gambia", "Gambia, The", "Republic of The Gambia", "Gambie"}},
	{"GHA", "Ghana", []string{"Republic of Ghana"}},
	{"GIN", "Guinea", []string{"Guinee", "Republic of Guinea", "Guinea-Conakry"}},
	{"GNB", "Guinea-Bissau", []string{"Guinee-Bissau", "Republic of Guinea-Bissau"}},
	{"LBR", "Liberia", []string{"Republic of Liberia"}},
	{"MLI", "Mali", []string{"Republic of Mali"}},
	{"MRT", "Mauritania", []string{"Mauritanie", "Islamic Republic of Mauritania"}},
	{"NER", "Niger", []string{"Republic of Niger", "Republic of the Niger"}},
	{"NGA", "Nigeria", []string{"Federal Republic of Nigeria"}},
	{"SEN", "Senegal", []string{"Republic of Senegal"}},
	{"SLE", "Sierra Leone", []string{"Republic of Sierra Leone"}},
	{"TGO", "Togo", []string{"Togolese Republic", "Republique Togolaise"}},

	// Central Africa
	{"AGO", "Angola", []string{"Republic of Angola"}},
	{"CMR", "Cameroon", []string{"Cameroun", "Republic of Cameroon"}},
	{"CAF", "Central African Republic", []string{"CAR", "Central African Rep", "Republique Centrafricaine", "Centrafrique"}},
	{"TCD", "Chad", []string{"Tchad", "Republic of Chad"}},
	{"COG", "Congo", []string{
		"Republic of the Congo", "Republic of Congo", "Congo, Republic of", "Congo, Republic of the",
		"Congo-Brazzaville", "Congo (Brazzaville)",
	}},
	{"COD", "Democratic Republic of the Congo", []string{
		"DRC", "DR Congo", "D.R. Congo", "Democratic Republic of Congo", "Democratic Rep of Congo",
		"Congo, Democratic Republic", "Congo, Democratic Republic of the", "Congo, The Democratic Republic of the",
		"Congo-Kinshasa", "Congo (Kinshasa)", "Zaire", "Republique Democratique du Congo",
	}},
	{"GNQ", "Equatorial Guinea", []string{"Guinea Ecuatorial", "Guinee Equatoriale", "Republic of Equatorial Guinea"}},
	{"GAB", "Gabon", []string{"Gabonese Republic"}},
	{"STP", "São Tomé and Príncipe", []string{"Sao Tome", "Sao Tome & Principe", "Democratic Republic of Sao Tome and Principe"}},

	// East Africa
	{"BDI", "Burundi", []string{"Republic of Burundi"}},
	{"COM", "Comoros", []string{"Comores", "Union of the Comoros"}},
	{"DJI", "Djibouti", []string{"Republic of Djibouti"}},
	{"ERI", "Eritrea", []string{"Erythree", "State of Eritrea"}},
	{"ETH", "Ethiopia", []string{"Ethiopie", "Federal Democratic Republic of Ethiopia"}},
	{"KEN", "Kenya", []string{"Republic of Kenya"}},
	{"MDG", "Madagascar", []string{"Republic of Madagascar"}},
	{"MWI", "Malawi", []string{"Republic of Malawi"}},
	{"MUS", "Mauritius", []string{"Maurice", "Republic of Mauritius"}},
	{"MOZ", "Mozambique", []string{"Republic of Mozambique"}},
	{"RWA", "Rwanda", []string{"Republic of Rwanda"}},
	{"SYC", "Seychelles", []string{"Republic of Seychelles"}},
	{"SOM", "Somalia", []string{"Somalie", "Federal Republic of Somalia"}},
	{"SSD", "South Sudan", []string{"Republic of South Sudan", "South Sudan, Republic of", "Soudan du Sud"}},
	{"TZA", "Tanzania", []string{"United Republic of Tanzania", "Tanzania, United Republic of", "Tanzanie"}},
	{"UGA", "Uganda", []string{"Ouganda", "Republic of Uganda"}},
	{"ZMB", "Zambia", []string{"Zambie", "Republic of Zambia"}},
	{"ZWE", "Zimbabwe", []string{"Republic of Zimbabwe"}},

	// Southern Africa
	{"BWA", "Botswana", []string{"Republic of Botswana"}},
	{"SWZ", "Eswatini", []string{"Swaziland", "Kingdom of Eswatini", "Kingdom of Swaziland"}},
	{"LSO", "Lesotho", []string{"Kingdom of Lesotho"}},
	{"NAM", "Namibia", []string{"Namibie", "Republic of Namibia"}},
	{"ZAF", "South Africa", []string{"RSA", "Republic of South Africa", "Afrique du Sud"}},
}

// CountryTable resolves free-form country values to canonical codes.
// It is immutable after construction and safe for concurrent use.
type CountryTable struct {
	byKey  map[string]string
	byCode map[string]Country
}

var isoSuffix = regexp.MustCompile(`^(.*?)\s*\(([A-Za-z]{3})\)$`)

// NewCountryTable builds a lookup from countries. It fails if two
// countries claim the same normalised alias.
func NewCountryTable(countries []Country) (*CountryTable, error) {
	t := &CountryTable{
		byKey:  make(map[string]string),
		byCode: make(map[string]Country, len(countries)),
	}
	for _, c := range countries {
		if _, dup := t.byCode[c.Code]; dup {
			return nil, fmt.Errorf("country code %s listed twice", c.Code)
		}
		t.byCode[c.Code] = c

		names := append([]string{c.Code, c.Name}, c.Aliases...)
		for _, n := range names {
			key := countryKey(n)
			if key == "" {
				continue
			}
			if prev, ok := t.byKey[key]; ok && prev != c.Code {
				return nil, fmt.Errorf("alias %q maps to both %s and %s", n, prev, c.Code)
			}
			t.byKey[key] = c.Code
		}
	}
	return t, nil
}

// MustCountryTable is NewCountryTable that panics on a conflicting table.
func MustCountryTable(countries []Country) *CountryTable {
	t, err := NewCountryTable(countries)
	if err != nil {
		panic(err)
	}
	return t
}

// DefaultCountries returns the built-in table of the 54 African countries.
func DefaultCountries() []Country {
	out := make([]Country, len(africanCountries))
	copy(out, africanCountries)
	return out
}

var defaultTable = MustCountryTable(africanCountries)

// DefaultTable returns the shared built-in table.
func DefaultTable() *CountryTable {
	return defaultTable
}

// Resolve maps a raw place-of-performance value to a canonical code.
// Only exact matches on the normalised form count. A value in
// "NAME (ISO)" form resolves only if both parts agree.
func (t *CountryTable) Resolve(raw string) (Country, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Country{}, false
	}

	if m := isoSuffix.FindStringSubmatch(raw); m != nil {
		code := strings.ToUpper(m[2])
		if _, ok := t.byCode[code]; !ok {
			return Country{}, false
		}
		if name := countryKey(m[1]); name != "" {
			if byName, ok := t.byKey[name]; !ok || byName != code {
				return Country{}, false
			}
		}
		return t.byCode[code], true
	}

	code, ok := t.byKey[countryKey(raw)]
	if !ok {
		return Country{}, false
	}
	return t.byCode[code], true
}

// Codes returns every canonical code in the table.
func (t *CountryTable) Codes() []string {
	codes := make([]string, 0, len(t.byCode))
	for code := range t.byCode {
		codes = append(codes, code)
	}
	return codes
}

// Lookup returns the country for a canonical code.
func (t *CountryTable) Lookup(code string) (Country, bool) {
	c, ok := t.byCode[strings.ToUpper(code)]
	return c, ok
}

// countryKey normalises a country spelling: diacritics removed,
// upper-cased, "&" spelled out, punctuation folded to single spaces.
func countryKey(s string) string {
	folded, _, err := transform.String(stripMarks(), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToUpper(folded)
	folded = strings.ReplaceAll(folded, "&", " AND ")
	folded = strings.ReplaceAll(folded, "'", "")
	folded = strings.ReplaceAll(folded, "’", "")

	var b strings.Builder
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

// stripMarks returns a fresh transformer; chained transformers hold state.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
