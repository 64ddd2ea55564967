// Package extractors turns uploaded file bytes into plain text.
//
// Each subpackage handles one family of media types and implements
// driven.Extractor. The Registry selects an extractor by media type,
// falling back to the file extension when the declared type is generic.
package extractors
