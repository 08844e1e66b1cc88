// Package qa answers questions about an ingested website.
//
// A Responder retrieves the chunks most relevant to a question, places them
// in a prompt and asks an ai.Generator to answer from that context alone.
package qa
