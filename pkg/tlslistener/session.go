package tlslistener

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"k8s.io/utils/lru"
)

// SessionCacheSize is the number of session tickets that stay resumable.
const SessionCacheSize = 1024

const ticketKeyInfo = "portico session ticket key"

// sessionCache bounds resumption to the most recently issued tickets.
type sessionCache struct {
	issued *lru.Cache
}

func newSessionCache(size int) *sessionCache {
	return &sessionCache{issued: lru.New(size)}
}

type ticketID [sha256.Size]byte

// install derives fresh ticket keys and hooks ticket issue and redemption
// into cfg.
func (c *sessionCache) install(cfg *tls.Config) error {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("generate ticket secret: %w", err)
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate ticket salt: %w", err)
	}

	var key [32]byte
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(ticketKeyInfo)), key[:]); err != nil {
		return fmt.Errorf("derive ticket key: %w", err)
	}
	cfg.SetSessionTicketKeys([][32]byte{key})

	cfg.WrapSession = func(cs tls.ConnectionState, ss *tls.SessionState) ([]byte, error) {
		ticket, err := cfg.EncryptTicket(cs, ss)
		if err != nil {
			return nil, err
		}
		c.issued.Add(ticketID(sha256.Sum256(ticket)), struct{}{})
		return ticket, nil
	}
	cfg.UnwrapSession = func(identity []byte, cs tls.ConnectionState) (*tls.SessionState, error) {
		if _, ok := c.issued.Get(ticketID(sha256.Sum256(identity))); !ok {
			// Unknown or evicted: fall back to a full handshake.
			return nil, nil
		}
		return cfg.DecryptTicket(identity, cs)
	}
	return nil
}

// Len returns the number of resumable tickets.
func (c *sessionCache) Len() int {
	return c.issued.Len()
}
