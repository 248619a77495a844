// Package secure keeps credentials encrypted in memory with memguard.
//
// Values are sealed into a memguard enclave (XSalsa20Poly1305, mlocked where
// RLIMIT_MEMLOCK allows) when configuration is loaded and only decrypted for
// the duration of a Use callback:
//
//	cred := secure.NewCredential(os.Getenv("SMTP_PASSWORD"))
//	defer cred.Destroy()
//
//	err := cred.Use(func(pw []byte) error {
//	    return login(string(pw))
//	})
//
// Formatting a Credential never prints the value.
package secure
