// Package sqlgen produces the T-SQL batches used to manage tenant servers:
// configuring memory, checking for and creating databases, and dropping them.
//
// Every function is pure. The returned statements must be executed verbatim,
// in order, within a single batch.
package sqlgen
