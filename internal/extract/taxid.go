package extract

import "regexp"

// gluedTaxIDs spots two CPFs printed without a separator, e.g.
// 942.204.178-34074.999.568-81.
var gluedTaxIDs = regexp.MustCompile(`(-\d{2})(\d{3}\.)`)

// RepairTaxID splits tax ids that the gazette glued together. Short values
// are returned unchanged.
func RepairTaxID(doc string) string {
	if runeLen(doc) <= 15 {
		return doc
	}
	return gluedTaxIDs.ReplaceAllString(doc, "${1}, ${2}")
}
