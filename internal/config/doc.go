// Package config loads the Creator SDK runtime configuration from a JSON or
// YAML file, fills in defaults and lets environment variables such as
// PUMPFUN_API_KEY, SOLANA_RPC_URL and SOLANA_PRIVATE_KEY override the file.
package config
