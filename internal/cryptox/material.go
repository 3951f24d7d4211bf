package cryptox

// Material is the outcome of the key material policy for one secret: the
// key the cipher runs with, the value escrowed on the record, and the
// optional access-gate verifier.
//
// Without a password the cipher key itself is escrowed and the share link
// fragment carries it to the recipient. With a password only the salt is
// escrowed; the key is re-derived from the submitted password at view time
// and never stored anywhere.
type Material struct {
	// CipherKey is the key passed to Encrypt, base64url-encoded.
	CipherKey string
	// Escrow is persisted as the record's key material: the raw key when
	// no password was chosen, the KDF salt otherwise.
	Escrow string
	// Gate is the password verifier, empty when no password was chosen.
	Gate string
}

// PasswordProtected reports whether the secret requires a password at view
// time.
func (m Material) PasswordProtected() bool {
	return m.Gate != ""
}

// NewMaterial applies the key material policy. password == "" selects the
// link-carried-key mode; anything else selects password mode.
func NewMaterial(password string) (Material, error) {
	if password == "" {
		key := RandomKey()
		return Material{CipherKey: key, Escrow: key}, nil
	}

	salt := RandomSalt()
	key, err := DeriveKey(password, salt)
	if err != nil {
		return Material{}, err
	}
	return Material{CipherKey: key, Escrow: salt, Gate: MakeGate(password)}, nil
}
