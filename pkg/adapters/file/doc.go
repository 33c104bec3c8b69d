// Package file stores archived chain histories as JSON files.
package file
