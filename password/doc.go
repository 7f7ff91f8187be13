// Package password verifies user passwords against argon2id PHC strings.
//
// Hashes use the PHC encoding:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The Engine consumes this package only through its PasswordVerifier
// interface, so a different scheme can be swapped in without touching the
// authentication flow. [Hasher.DummyHash] gives the Engine a hash to verify
// against when the username is unknown, keeping response timing flat.
package password
