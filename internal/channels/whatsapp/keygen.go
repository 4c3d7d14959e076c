package whatsapp

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
)

// KeyPair is an X25519 key pair in the JSON shape the bridge expects.
// []byte fields serialize as base64.
type KeyPair struct {
	Private []byte `json:"private"`
	Public  []byte `json:"public"`
}

// Credentials is the primary credential record for one WhatsApp account.
// The bridge owns the protocol semantics of these fields; the adapter
// only synthesizes fresh ones and persists updates byte-exact.
type Credentials struct {
	NoiseKey          KeyPair `json:"noiseKey"`
	SignedIdentityKey KeyPair `json:"signedIdentityKey"`
	RegistrationID    uint32  `json:"registrationId"`
	AdvSecretKey      []byte  `json:"advSecretKey"`
	Registered        bool    `json:"registered"`
}

// maxRegistrationID bounds the device registration ID per the protocol.
const maxRegistrationID = 16380

func newKeyPair() (KeyPair, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate x25519 key: %w", err)
	}
	return KeyPair{
		Private: priv.Bytes(),
		Public:  priv.PublicKey().Bytes(),
	}, nil
}

// newCredentials synthesizes a fresh, unregistered credential set for a
// first-time connection.
func newCredentials() (*Credentials, error) {
	noise, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	identity, err := newKeyPair()
	if err != nil {
		return nil, err
	}

	regID, err := rand.Int(rand.Reader, big.NewInt(maxRegistrationID))
	if err != nil {
		return nil, fmt.Errorf("generate registration id: %w", err)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate adv secret: %w", err)
	}

	return &Credentials{
		NoiseKey:          noise,
		SignedIdentityKey: identity,
		RegistrationID:    uint32(regID.Int64()) + 1,
		AdvSecretKey:      secret,
		Registered:        false,
	}, nil
}

func (c *Credentials) marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal credentials: %w", err)
	}
	return data, nil
}
