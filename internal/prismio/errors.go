package prismio

import "errors"

// ErrMalformedExport is returned when a model-checker export file is
// unparseable or internally inconsistent.
var ErrMalformedExport = errors.New("prismio: malformed model-checker export")
