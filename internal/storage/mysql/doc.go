// Package mysql persists the creator activity log: every token launch, fee
// claim and fund distribution together with its signatures. It ships a
// JSON-lines backed in-memory repository for local use and a MySQL
// repository with embedded schema migrations.
package mysql
