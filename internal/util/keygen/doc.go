// Package keygen generates credentials for tenant SQL Servers.
//
// Passwords satisfy the SQL Server complexity policy (CHECK_POLICY=ON):
// at least eight characters drawn from upper case, lower case, digits and
// symbols. Randomness comes from crypto/rand.
package keygen
