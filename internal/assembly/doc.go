// Package assembly turns an ordered page image sequence into the raw PDF
// the OCR stage consumes, including front and back cover repositioning.
package assembly
