// Package keystore persists a validator's private key to disk, encrypted
// with a password-derived key. It only guards the key at rest; signing
// itself is delegated to the crypto package.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/lightchain-sdp/node/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Iterations = 210_000

type file struct {
	PubKey     string `json:"pub_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// ErrWrongPassword is returned by Load when decryption fails, whether
// from a bad password or a corrupted file.
var ErrWrongPassword = errors.New("keystore: wrong password or corrupted keystore")

// Save encrypts priv with password and writes it to path as a JSON
// keystore file. Key derivation is PBKDF2-HMAC-SHA256 over a random
// per-file salt.
func Save(path, password string, priv crypto.PrivateKey) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, priv, nil)

	f := file{
		PubKey:     priv.Public().Hex(),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Load decrypts the keystore file at path using password.
func Load(path, password string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(f.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(f.Nonce)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(f.CipherText)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	privBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return crypto.PrivateKey(privBytes), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
