package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

const redacted = "[REDACTED]"

// Credential is a secret string held in a memguard enclave. The zero value
// and a nil *Credential are both empty credentials.
type Credential struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// NewCredential seals value. An empty value yields an empty credential.
func NewCredential(value string) *Credential {
	c := &Credential{}
	if value != "" {
		// NewEnclave wipes its input, so hand it a private copy.
		c.enclave = memguard.NewEnclave([]byte(value))
	}
	return c
}

// IsSet reports whether the credential holds a value.
func (c *Credential) IsSet() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enclave != nil && !c.destroyed
}

// Use decrypts the value, passes it to fn and wipes the plaintext when fn
// returns. fn must not retain the slice. Empty credentials pass nil.
func (c *Credential) Use(fn func(value []byte) error) error {
	if !c.IsSet() {
		return fn(nil)
	}

	c.mu.RLock()
	locked, err := c.enclave.Open()
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	defer locked.Destroy()

	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is safe to call more than once.
func (c *Credential) Destroy() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enclave = nil
	c.destroyed = true
}

// String implements fmt.Stringer without revealing the value.
func (c *Credential) String() string {
	if !c.IsSet() {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the enclave.
func (c *Credential) GoString() string {
	return c.String()
}
