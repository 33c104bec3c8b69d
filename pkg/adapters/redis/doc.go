// Package redis archives chain histories in Redis so that they survive the
// node process and can be inspected from other hosts.
package redis
