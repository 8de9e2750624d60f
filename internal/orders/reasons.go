package orders

import (
	"strings"
)

// ReturnReason mirrors Shopify's ReturnReason enum.
type ReturnReason string

const (
	ReasonSizeTooSmall   ReturnReason = "SIZE_TOO_SMALL"
	ReasonSizeTooLarge   ReturnReason = "SIZE_TOO_LARGE"
	ReasonUnwanted       ReturnReason = "UNWANTED"
	ReasonNotAsDescribed ReturnReason = "NOT_AS_DESCRIBED"
	ReasonWrongItem      ReturnReason = "WRONG_ITEM"
	ReasonDefective      ReturnReason = "DEFECTIVE"
	ReasonDamaged        ReturnReason = "DAMAGED"
	ReasonStyle          ReturnReason = "STYLE"
	ReasonColor          ReturnReason = "COLOR"
	ReasonOther          ReturnReason = "OTHER"
)

type ReasonOption struct {
	Value ReturnReason `json:"value"`
	Label string       `json:"label"`
}

// ReasonOptions is the fixed list offered when a return arrives without a reason.
var ReasonOptions = []ReasonOption{
	{ReasonSizeTooSmall, "Size too small"},
	{ReasonSizeTooLarge, "Size too large"},
	{ReasonUnwanted, "Changed my mind"},
	{ReasonNotAsDescribed, "Item not as described"},
	{ReasonWrongItem, "Received the wrong item"},
	{ReasonDefective, "Item is defective"},
	{ReasonDamaged, "Item arrived damaged"},
	{ReasonStyle, "Didn't like the style"},
	{ReasonColor, "Didn't like the color"},
	{ReasonOther, "Other"},
}

// Label returns the human wording for a reason.
func (r ReturnReason) Label() string {
	for _, o := range ReasonOptions {
		if o.Value == r {
			return o.Label
		}
	}
	return "Other"
}

// phrase matching runs in order; more specific phrases come first.
var reasonPhrases = []struct {
	phrase string
	reason ReturnReason
}{
	{"not as described", ReasonNotAsDescribed},
	{"not as pictured", ReasonNotAsDescribed},
	{"different from", ReasonNotAsDescribed},
	{"too small", ReasonSizeTooSmall},
	{"too tight", ReasonSizeTooSmall},
	{"small", ReasonSizeTooSmall},
	{"too large", ReasonSizeTooLarge},
	{"too big", ReasonSizeTooLarge},
	{"too loose", ReasonSizeTooLarge},
	{"large", ReasonSizeTooLarge},
	{"wrong", ReasonWrongItem},
	{"defect", ReasonDefective},
	{"not working", ReasonDefective},
	{"doesn't work", ReasonDefective},
	{"does not work", ReasonDefective},
	{"faulty", ReasonDefective},
	{"damage", ReasonDamaged},
	{"broken", ReasonDamaged},
	{"cracked", ReasonDamaged},
	{"changed my mind", ReasonUnwanted},
	{"no longer", ReasonUnwanted},
	{"don't want", ReasonUnwanted},
	{"do not want", ReasonUnwanted},
	{"unwanted", ReasonUnwanted},
	{"colour", ReasonColor},
	{"color", ReasonColor},
	{"style", ReasonStyle},
}

// NormalizeReturnReason maps enum values and free text onto ReturnReason.
// Anything unrecognized, including the empty string, becomes OTHER.
func NormalizeReturnReason(s string) ReturnReason {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReasonOther
	}

	code := ReturnReason(strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(s)))
	for _, o := range ReasonOptions {
		if o.Value == code {
			return code
		}
	}

	lower := strings.ToLower(s)
	for _, p := range reasonPhrases {
		if strings.Contains(lower, p.phrase) {
			return p.reason
		}
	}
	return ReasonOther
}
