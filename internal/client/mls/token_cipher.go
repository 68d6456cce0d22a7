package mls

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

const sealedFormat = "aes-gcm-v1"

var errSealedToken = errors.New("stored token is sealed with an unknown key")

type sealedValue struct {
	Enc   string `json:"enc"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// TokenCipher seals persisted tokens with AES-GCM. The row name is bound as
// additional data so a value cannot be moved between rows. Values are
// opened with the primary key first, then the previous one, so keys can be
// rotated without dropping the stored token.
type TokenCipher struct {
	primary cipher.AEAD
	all     []cipher.AEAD
}

// NewTokenCipher returns nil when primary is empty; a nil cipher stores
// tokens in the clear.
func NewTokenCipher(primary, previous string) *TokenCipher {
	p := newGCM(parseKey(primary))
	if p == nil {
		return nil
	}
	c := &TokenCipher{primary: p, all: []cipher.AEAD{p}}
	if strings.TrimSpace(previous) != "" && strings.TrimSpace(previous) != strings.TrimSpace(primary) {
		if prev := newGCM(parseKey(previous)); prev != nil {
			c.all = append(c.all, prev)
		}
	}
	return c
}

func (c *TokenCipher) Seal(name, plain string) (string, error) {
	if c == nil {
		return plain, nil
	}
	nonce := make([]byte, c.primary.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ct := c.primary.Seal(nil, nonce, []byte(plain), additionalData(name))
	out, err := json.Marshal(sealedValue{
		Enc:   sealedFormat,
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(ct),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Open returns stored unchanged when it is not a sealed value.
func (c *TokenCipher) Open(name, stored string) (string, error) {
	var payload sealedValue
	if err := json.Unmarshal([]byte(stored), &payload); err != nil || payload.Enc != sealedFormat {
		return stored, nil
	}
	if c == nil {
		return "", errSealedToken
	}
	nonce, err := base64.StdEncoding.DecodeString(payload.Nonce)
	if err != nil {
		return "", err
	}
	ct, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return "", err
	}
	for _, gcm := range c.all {
		if len(nonce) != gcm.NonceSize() {
			continue
		}
		if pt, err := gcm.Open(nil, nonce, ct, additionalData(name)); err == nil {
			return string(pt), nil
		}
	}
	return "", errSealedToken
}

func additionalData(name string) []byte {
	return []byte("mls_access_tokens:" + strings.ToLower(strings.TrimSpace(name)))
}

// parseKey accepts base64 or raw bytes and trims to the largest AES key
// size that fits. Keys shorter than 16 bytes are rejected.
func parseKey(k string) []byte {
	k = strings.TrimSpace(k)
	if k == "" {
		return nil
	}
	keyBytes, err := base64.StdEncoding.DecodeString(k)
	if err != nil {
		keyBytes = []byte(k)
	}
	switch n := len(keyBytes); {
	case n >= 32:
		return keyBytes[:32]
	case n >= 24:
		return keyBytes[:24]
	case n >= 16:
		return keyBytes[:16]
	default:
		return nil
	}
}

func newGCM(keyBytes []byte) cipher.AEAD {
	if len(keyBytes) == 0 {
		return nil
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil
	}
	return gcm
}
