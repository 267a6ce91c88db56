package openid

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Association types (OpenID 2.0 Section 8.3)
const (
	AssocHMACSHA1   = "HMAC-SHA1"
	AssocHMACSHA256 = "HMAC-SHA256"
)

// Session types for association key exchange (OpenID 2.0 Section 8.4)
const (
	SessionNoEncryption = "no-encryption"
	SessionDHSHA1       = "DH-SHA1"
	SessionDHSHA256     = "DH-SHA256"
)

// defaultModulusHex is the default Diffie-Hellman modulus from
// OpenID 2.0 Appendix B (1536-bit prime, generator 2).
const defaultModulusHex = "DCF93A0B883972EC0E19989AC5A2CE310E1D37717E8D9571" +
	"BB7623731866E61EF75A2E27898B057F9891C2E27A639C3F" +
	"29B60814581CD3B2CA3986D2683705577D45C2E7E52DC81C" +
	"7A171876E5CEA74B1448BFDFAF18828EFD2519F14E45E382" +
	"6634AF1949E5B535CC829A483B8A76223E5D490A257F05BD" +
	"FF16F2FB22C583AB"

var (
	defaultModulus, _ = new(big.Int).SetString(defaultModulusHex, 16)
	defaultGen        = big.NewInt(2)
)

// Association is a shared or private MAC key identified by a handle.
// Shared associations are negotiated with relying parties and used to sign
// assertions they can verify themselves; private associations sign
// assertions for stateless parties, verified later via check_authentication.
type Association struct {
	Handle    string
	Type      string
	MACKey    []byte
	Private   bool
	ExpiresAt time.Time
}

// NewAssociation mints an association with a fresh handle and random MAC
// key of the length the association type demands.
func NewAssociation(assocType string, ttl time.Duration, private bool) (*Association, error) {
	size, err := macKeySize(assocType)
	if err != nil {
		return nil, err
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate MAC key: %w", err)
	}
	return &Association{
		Handle:    uuid.NewString(),
		Type:      assocType,
		MACKey:    key,
		Private:   private,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

// Sign computes the HMAC of the signature base with this association's key.
func (a *Association) Sign(base []byte) []byte {
	mac := hmac.New(a.hashFunc(), a.MACKey)
	mac.Write(base)
	return mac.Sum(nil)
}

// VerifySig reports whether sig is the HMAC of base under this key.
// Comparison is constant time.
func (a *Association) VerifySig(base, sig []byte) bool {
	return hmac.Equal(a.Sign(base), sig)
}

// Expired reports whether the association is past its lifetime.
func (a *Association) Expired() bool {
	return time.Now().After(a.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime in whole seconds, floored at zero.
func (a *Association) ExpiresIn() int64 {
	d := time.Until(a.ExpiresAt)
	if d < 0 {
		return 0
	}
	return int64(d.Seconds())
}

func (a *Association) hashFunc() func() hash.Hash {
	if a.Type == AssocHMACSHA256 {
		return sha256.New
	}
	return sha1.New
}

func macKeySize(assocType string) (int, error) {
	switch assocType {
	case AssocHMACSHA1:
		return sha1.Size, nil
	case AssocHMACSHA256:
		return sha256.Size, nil
	default:
		return 0, &ProtocolError{Reason: "unsupported association type " + assocType}
	}
}

// dhExchange is the provider side of one Diffie-Hellman key agreement.
type dhExchange struct {
	modulus *big.Int
	gen     *big.Int
	priv    *big.Int
	pub     *big.Int
}

// newDHExchange generates the provider's key pair. A nil modulus or
// generator selects the OpenID 2.0 defaults.
func newDHExchange(modulus, gen *big.Int) (*dhExchange, error) {
	if modulus == nil {
		modulus = defaultModulus
	}
	if gen == nil {
		gen = defaultGen
	}
	priv, err := rand.Int(rand.Reader, new(big.Int).Sub(modulus, big.NewInt(2)))
	if err != nil {
		return nil, fmt.Errorf("generate DH private key: %w", err)
	}
	priv.Add(priv, big.NewInt(1))
	return &dhExchange{
		modulus: modulus,
		gen:     gen,
		priv:    priv,
		pub:     new(big.Int).Exp(gen, priv, modulus),
	}, nil
}

// sharedSecret computes g^(xy) mod p from the consumer's public key.
func (d *dhExchange) sharedSecret(consumerPub *big.Int) *big.Int {
	return new(big.Int).Exp(consumerPub, d.priv, d.modulus)
}

// encryptMACKey XORs the MAC key with the hash of the btwoc-encoded shared
// secret (OpenID 2.0 Section 8.4.2). The hash is chosen by session type.
func encryptMACKey(macKey []byte, secret *big.Int, sessionType string) ([]byte, error) {
	var digest []byte
	switch sessionType {
	case SessionDHSHA1:
		sum := sha1.Sum(btwoc(secret))
		digest = sum[:]
	case SessionDHSHA256:
		sum := sha256.Sum256(btwoc(secret))
		digest = sum[:]
	default:
		return nil, &ProtocolError{Reason: "unsupported session type " + sessionType}
	}
	if len(macKey) != len(digest) {
		return nil, &ProtocolError{Reason: "MAC key length does not match session type hash"}
	}
	out := make([]byte, len(macKey))
	for i := range macKey {
		out[i] = macKey[i] ^ digest[i]
	}
	return out, nil
}

// btwoc encodes a non-negative integer in big-endian two's complement,
// the shortest form with a clear sign bit (OpenID 2.0 Section 4.2).
func btwoc(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) == 0 || b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

// intFromBtwoc decodes a btwoc-encoded integer.
func intFromBtwoc(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
