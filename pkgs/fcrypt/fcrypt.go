// Package fcrypt wraps age encryption for armored file payloads, used for
// vault variable files.
package fcrypt

import (
	"fmt"
	"io"

	"filippo.io/age"
	"filippo.io/age/armor"
)

func LoadPublicKey(key string) (*age.X25519Recipient, error) {
	ageRecipient, err := age.ParseX25519Recipient(key)
	if err != nil {
		return nil, fmt.Errorf("error parsing age public key='%s': %w", key, err)
	}

	return ageRecipient, nil
}

func LoadPrivateKey(key string) (*age.X25519Identity, error) {
	ageIdentity, err := age.ParseX25519Identity(key)
	if err != nil {
		return nil, fmt.Errorf("error parsing age private key: %w", err)
	}

	return ageIdentity, nil
}

// EncryptReader encrypts data from r and writes the armored result to w.
func EncryptReader(r io.Reader, w io.Writer, recipient age.Recipient) error {
	armorWriter := armor.NewWriter(w)

	encryptor, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return fmt.Errorf("failed to create encryptor: %w", err)
	}

	if _, err := io.Copy(encryptor, r); err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}

	// Close in reverse order to finalize both layers.
	if err := encryptor.Close(); err != nil {
		_ = armorWriter.Close()
		return fmt.Errorf("failed to finalize encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize armor: %w", err)
	}

	return nil
}

// DecryptReader decrypts armored data from r and writes the plaintext to w.
func DecryptReader(r io.Reader, w io.Writer, identity age.Identity) error {
	armorReader := armor.NewReader(r)

	decryptor, err := age.Decrypt(armorReader, identity)
	if err != nil {
		return fmt.Errorf("failed to create decryptor: %w", err)
	}

	if _, err := io.Copy(w, decryptor); err != nil {
		return fmt.Errorf("failed to decrypt: %w", err)
	}

	return nil
}
