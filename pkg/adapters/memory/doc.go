// Package memory provides in-process adapters for the dispatch ports.
package memory
