package credstore

import (
	"crypto/rand"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealKeySize   = 32
	sealNonceSize = 24
)

// SealedKV encrypts values with NaCl secretbox before handing them to the wrapped
// KV. Keys are stored in the clear.
type SealedKV struct {
	inner  KV
	key    [sealKeySize]byte
	logger zerolog.Logger
}

// NewSealedKV wraps inner. key must be exactly 32 bytes.
func NewSealedKV(inner KV, key []byte) (*SealedKV, error) {
	if inner == nil {
		return nil, errors.New("[NewSealedKV] inner store is required")
	}
	if len(key) != sealKeySize {
		return nil, errors.Errorf("[NewSealedKV] key must be %d bytes, got %d", sealKeySize, len(key))
	}

	s := &SealedKV{inner: inner, logger: log.Logger}
	copy(s.key[:], key)
	return s, nil
}

// Get returns ok=false for values that do not open, such as values written with
// another key or in the clear.
func (s *SealedKV) Get(key string) (string, bool, error) {
	sealed, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return "", false, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < sealNonceSize+secretbox.Overhead {
		s.logger.Warn().Str("key", key).Msg("sealed value malformed, ignoring")
		return "", false, nil
	}

	var nonce [sealNonceSize]byte
	copy(nonce[:], raw[:sealNonceSize])
	plain, ok := secretbox.Open(nil, raw[sealNonceSize:], &nonce, &s.key)
	if !ok {
		s.logger.Warn().Str("key", key).Msg("sealed value failed to open, ignoring")
		return "", false, nil
	}
	return string(plain), true, nil
}

func (s *SealedKV) Set(key, value string) error {
	var nonce [sealNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return errors.Wrap(err, "[SealedKV.Set] generate nonce")
	}
	box := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return s.inner.Set(key, base64.StdEncoding.EncodeToString(box))
}

func (s *SealedKV) Delete(key string) error {
	return s.inner.Delete(key)
}
