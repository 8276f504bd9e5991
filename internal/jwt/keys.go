package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Keypair es la clave de firma EdDSA del servidor.
type Keypair struct {
	KID  string
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
}

type keyfile struct {
	KID        string `json:"kid"`
	PrivateKey string `json:"private_key"` // base64url (seed+pub)
	PublicKey  string `json:"public_key"`  // base64url
}

// GenerateKeypair crea una clave Ed25519 nueva con KID derivado de la pubkey.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keypair{KID: kidFor(pub), Priv: priv, Pub: pub}, nil
}

// LoadOrGenerate carga la clave desde path; si no existe, genera una nueva y
// la persiste (0600).
func LoadOrGenerate(path string) (*Keypair, error) {
	if b, err := os.ReadFile(path); err == nil {
		var kf keyfile
		if err := json.Unmarshal(b, &kf); err != nil {
			return nil, fmt.Errorf("parse key file: %w", err)
		}
		privRaw, err := base64.RawURLEncoding.DecodeString(kf.PrivateKey)
		if err != nil || len(privRaw) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("key file: bad private key")
		}
		pubRaw, err := base64.RawURLEncoding.DecodeString(kf.PublicKey)
		if err != nil || len(pubRaw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("key file: bad public key")
		}
		kp := &Keypair{KID: kf.KID, Priv: privRaw, Pub: pubRaw}
		if kp.KID == "" {
			kp.KID = kidFor(kp.Pub)
		}
		return kp, nil
	}

	kp, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}
	if err := Save(path, kp); err != nil {
		return nil, err
	}
	return kp, nil
}

// Save persiste la clave en path con permisos 0600.
func Save(path string, kp *Keypair) error {
	b, err := json.MarshalIndent(keyfile{
		KID:        kp.KID,
		PrivateKey: base64.RawURLEncoding.EncodeToString(kp.Priv),
		PublicKey:  base64.RawURLEncoding.EncodeToString(kp.Pub),
	}, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o600)
}

// kidFor deriva un KID corto y estable de la pubkey.
func kidFor(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}
