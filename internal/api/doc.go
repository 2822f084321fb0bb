// Package api exposes the Creator SDK over a JSON REST interface: chat turns,
// token launches, fee claims, fund distributions, stats and the activity log.
package api
