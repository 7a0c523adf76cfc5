package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Cipher encrypts credential secrets with AES-GCM. Ciphertext carries a key-version
// prefix ("v1:...") so the active key can rotate while previous ciphertext stays
// decryptable until re-encrypted.
type Cipher struct {
	active string
	aeads  map[string]cipher.AEAD
}

type KeyConfig struct {
	// Version -> raw key material. Accepts base64 of 16/24/32 bytes or any
	// passphrase, which is stretched through SHA-256.
	Keys          map[string]string
	ActiveVersion string
}

func NewCipher(cfg KeyConfig) (*Cipher, error) {
	if cfg.ActiveVersion == "" {
		return nil, errors.New("vault cipher: active key version is empty")
	}
	if _, ok := cfg.Keys[cfg.ActiveVersion]; !ok {
		return nil, errors.Errorf("vault cipher: no key material for active version %s", cfg.ActiveVersion)
	}

	aeads := make(map[string]cipher.AEAD, len(cfg.Keys))
	for version, raw := range cfg.Keys {
		if strings.TrimSpace(raw) == "" {
			return nil, errors.Errorf("vault cipher: empty key material for version %s", version)
		}
		block, err := aes.NewCipher(deriveKey(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "vault cipher: create cipher for version %s", version)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, errors.Wrapf(err, "vault cipher: create gcm for version %s", version)
		}
		aeads[version] = gcm
	}

	return &Cipher{active: cfg.ActiveVersion, aeads: aeads}, nil
}

func deriveKey(raw string) []byte {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err == nil {
		switch len(decoded) {
		case 16, 24, 32:
			return decoded
		}
	}

	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

// Encrypt seals the plaintext under the active key version.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}

	gcm := c.aeads[c.active]
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "generate nonce")
	}

	sealed := gcm.Seal(nil, nonce, []byte(plain), nil)
	payload := append(nonce, sealed...)

	return c.active + ":" + base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt opens ciphertext produced by any configured key version.
func (c *Cipher) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	version, encoded, found := strings.Cut(value, ":")
	if !found {
		return "", errors.New("ciphertext missing key version prefix")
	}

	gcm, ok := c.aeads[version]
	if !ok {
		return "", errors.Errorf("no key configured for ciphertext version %s", version)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.Wrap(err, "decode ciphertext")
	}

	nonceSize := gcm.NonceSize()
	if len(data) <= nonceSize {
		return "", errors.New("ciphertext too short")
	}

	plain, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt ciphertext: %w", err)
	}

	return string(plain), nil
}

// ActiveVersion reports which key version new ciphertext is sealed under.
func (c *Cipher) ActiveVersion() string {
	return c.active
}
