package evidence

import (
	"bytes"
	"fmt"
	"os"

	"filippo.io/age"

	"github.com/edison-dev/edison/internal/atomicio"
)

// SealAge encrypts the evidence file at path to path+".age" for the given
// recipient, as an additive, never-required supplemental seal (spec §4.10's
// HMAC marker remains the load-bearing tamper check; this is for shipping
// an evidence bundle to a party that should not see it in the clear without
// the matching identity).
func SealAge(path, recipientStr string) (string, error) {
	recipient, err := age.ParseX25519Recipient(recipientStr)
	if err != nil {
		return "", fmt.Errorf("evidence: parse age recipient: %w", err)
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return "", fmt.Errorf("evidence: age encrypt: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	sealedPath := path + ".age"
	if err := atomicio.WriteBytes(sealedPath, buf.Bytes()); err != nil {
		return "", err
	}
	return sealedPath, nil
}

// OpenAgeSeal decrypts a file produced by SealAge using identityStr (an
// age X25519 identity, e.g. "AGE-SECRET-KEY-...").
func OpenAgeSeal(sealedPath, identityStr string) ([]byte, error) {
	identity, err := age.ParseX25519Identity(identityStr)
	if err != nil {
		return nil, fmt.Errorf("evidence: parse age identity: %w", err)
	}

	ciphertext, err := os.ReadFile(sealedPath)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("evidence: age decrypt: %w", err)
	}

	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
