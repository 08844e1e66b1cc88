// Package reembed regenerates the vectors of every point in a collection,
// typically after switching embedding models.
package reembed
