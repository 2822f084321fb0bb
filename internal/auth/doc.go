// Package auth guards the REST API with static bearer tokens. Each token maps
// to a named caller and a permission set; every authenticated request and
// every rejection is written to the audit log.
package auth
