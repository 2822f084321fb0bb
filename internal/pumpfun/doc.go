// Package pumpfun is a thin client for the PumpPortal trading API used to
// launch tokens on pump.fun and collect creator fees. Requests are JSON over
// HTTP; the API key travels in the api-key query parameter.
package pumpfun
