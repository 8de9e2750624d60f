package customers

import (
	"regexp"
	"strings"
)

var (
	emailRe     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigitRe  = regexp.MustCompile(`\D`)
	isoAlpha2Re = regexp.MustCompile(`^[A-Z]{2}$`)
)

const (
	msgEmailInvalid    = "Please enter a valid email address."
	msgPhoneInvalid    = "Phone number must contain between 10 and 15 digits."
	msgIDRequired      = "Customer ID is required."
	msgStreetRequired  = "Street address is required."
	msgCityRequired    = "City is required."
	msgZipRequired     = "ZIP/postal code is required."
	msgCountryRequired = "Country is required."
	msgCountryInvalid  = "Please enter a valid country or two-letter country code."
	msgProvinceUS      = "State is required for United States addresses."
	msgProvinceCA      = "Province is required for Canadian addresses."
)

// ValidPhone reports whether s holds 10 to 15 digits once formatting is stripped.
func ValidPhone(s string) bool {
	n := len(nonDigitRe.ReplaceAllString(s, ""))
	return n >= 10 && n <= 15
}

func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// Validate returns every problem with the update, in field order. Empty means valid.
func Validate(u CustomerUpdate) []string {
	var msgs []string
	if strings.TrimSpace(u.ID) == "" {
		msgs = append(msgs, msgIDRequired)
	}
	if u.Email != nil && !ValidEmail(*u.Email) {
		msgs = append(msgs, msgEmailInvalid)
	}
	if u.Phone != nil && strings.TrimSpace(*u.Phone) != "" && !ValidPhone(*u.Phone) {
		msgs = append(msgs, msgPhoneInvalid)
	}
	if u.DefaultAddress != nil {
		msgs = append(msgs, validateAddress(*u.DefaultAddress)...)
	}
	return msgs
}

func validateAddress(a Address) []string {
	var msgs []string
	if strings.TrimSpace(a.Address1) == "" {
		msgs = append(msgs, msgStreetRequired)
	}
	if strings.TrimSpace(a.City) == "" {
		msgs = append(msgs, msgCityRequired)
	}
	if strings.TrimSpace(a.Zip) == "" {
		msgs = append(msgs, msgZipRequired)
	}

	country := CountryCode(a.Country)
	switch {
	case strings.TrimSpace(a.Country) == "":
		msgs = append(msgs, msgCountryRequired)
	case country == "":
		msgs = append(msgs, msgCountryInvalid)
	}
	if strings.TrimSpace(a.Province) == "" {
		switch country {
		case "US":
			msgs = append(msgs, msgProvinceUS)
		case "CA":
			msgs = append(msgs, msgProvinceCA)
		}
	}
	if strings.TrimSpace(a.Phone) != "" && !ValidPhone(a.Phone) {
		msgs = append(msgs, msgPhoneInvalid)
	}
	return msgs
}

var countryNames = map[string]string{
	"UNITED STATES":            "US",
	"UNITED STATES OF AMERICA": "US",
	"USA":                      "US",
	"CANADA":                   "CA",
	"UNITED KINGDOM":           "GB",
	"GREAT BRITAIN":            "GB",
	"UK":                       "GB",
	"AUSTRALIA":                "AU",
	"GERMANY":                  "DE",
	"FRANCE":                   "FR",
	"MEXICO":                   "MX",
}

// CountryCode turns a country name or code into an ISO 3166-1 alpha-2 code.
// It returns "" for names it does not know.
func CountryCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if code, ok := countryNames[s]; ok {
		return code
	}
	if isoAlpha2Re.MatchString(s) {
		return s
	}
	return ""
}

var regionNames = map[string]string{
	"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA",
	"COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE", "DISTRICT OF COLUMBIA": "DC", "FLORIDA": "FL",
	"GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID", "ILLINOIS": "IL", "INDIANA": "IN",
	"IOWA": "IA", "KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME",
	"MARYLAND": "MD", "MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS",
	"MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV", "NEW HAMPSHIRE": "NH",
	"NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY", "NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND",
	"OHIO": "OH", "OKLAHOMA": "OK", "OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI",
	"SOUTH CAROLINA": "SC", "SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT",
	"VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV", "WISCONSIN": "WI",
	"WYOMING": "WY", "PUERTO RICO": "PR",
}

var provinceNames = map[string]string{
	"ALBERTA": "AB", "BRITISH COLUMBIA": "BC", "MANITOBA": "MB", "NEW BRUNSWICK": "NB",
	"NEWFOUNDLAND AND LABRADOR": "NL", "NOVA SCOTIA": "NS", "NORTHWEST TERRITORIES": "NT", "NUNAVUT": "NU",
	"ONTARIO": "ON", "PRINCE EDWARD ISLAND": "PE", "QUEBEC": "QC", "SASKATCHEWAN": "SK", "YUKON": "YT",
}

// ProvinceCode resolves a state or province name to its code for US and CA addresses.
// Short values are taken as codes already; unknown names are passed through.
func ProvinceCode(country, province string) string {
	p := strings.ToUpper(strings.TrimSpace(province))
	if p == "" {
		return ""
	}
	var table map[string]string
	switch CountryCode(country) {
	case "US":
		table = regionNames
	case "CA":
		table = provinceNames
	}
	if code, ok := table[p]; ok {
		return code
	}
	return p
}
