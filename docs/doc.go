// Package docs turns uploaded files into plain text ready for chunking.
//
// Supported formats are plain text (.txt, .md), HTML (.html, .htm) and SVG
// (.svg, text elements only). Every format is passed through
// chunk.Preprocess before it is returned.
package docs
