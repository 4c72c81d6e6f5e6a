package sessions

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceLength = 24
	keyLength   = 32
)

var errUnsealable = errors.New("sealed session could not be opened")

// Sealer encrypts session bundles before they reach the key/value table.
type Sealer struct {
	key [keyLength]byte
}

// NewSealer derives the sealing key from secret. An empty secret is rejected.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("[NewSealer] seal secret is required")
	}
	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("paygate session seal v1"))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	var nonce [nonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceLength+secretbox.Overhead {
		return nil, errUnsealable
	}
	var nonce [nonceLength]byte
	copy(nonce[:], sealed[:nonceLength])
	plain, ok := secretbox.Open(nil, sealed[nonceLength:], &nonce, &s.key)
	if !ok {
		return nil, errUnsealable
	}
	return plain, nil
}
