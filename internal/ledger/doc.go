// Package ledger defines the value-ledger abstraction used by the fund
// distributor and the SDK facade. Concrete backends live in sub-packages:
// solana (the primary ledger for pump.fun creators), evm (native value
// transfers on EVM chains via go-ethereum) and provider, which builds a
// registry of named ledgers from YAML definitions.
package ledger
