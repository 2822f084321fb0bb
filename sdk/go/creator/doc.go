// Package creator is a Go client for the creatord REST API.
package creator
