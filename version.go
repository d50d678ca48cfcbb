// Package barnhunt renders Barn Hunt course maps to printable PDFs by
// driving Inkscape.
package barnhunt

// Version is the barnhunt release version.
var Version = "0.1.0"
