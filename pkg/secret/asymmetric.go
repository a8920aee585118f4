// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-josekit.
//
// go-josekit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package secret

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
	"math/big"
	"sync/atomic"

	"github.com/jeremyhahn/go-josekit/pkg/encoding"
)

// handle is the native material shared by the asymmetric variants.
type handle struct {
	public   crypto.PublicKey
	private  crypto.Signer
	cert     *x509.Certificate
	owns     bool
	disposed atomic.Bool
}

// Signer returns the private half, or nil for public-only keys.
func (h *handle) Signer() crypto.Signer {
	if h.disposed.Load() {
		return nil
	}
	return h.private
}

// HasPrivateKey reports whether the key can sign or decrypt.
func (h *handle) HasPrivateKey() bool {
	return h.Signer() != nil
}

// Certificate returns the certificate the key was built from, if any.
func (h *handle) Certificate() *x509.Certificate {
	return h.cert
}

// Owns reports whether Dispose releases the native handle.
func (h *handle) Owns() bool {
	return h.owns
}

// IsDisposed reports whether Dispose has been called.
func (h *handle) IsDisposed() bool {
	return h.disposed.Load()
}

// TryExportKey writes PKCS#8 DER for private keys and PKIX DER for
// public-only keys.
func (h *handle) TryExportKey(dst []byte) (int, bool, error) {
	if h.disposed.Load() {
		return 0, false, ErrKeyDisposed
	}

	var (
		der []byte
		err error
	)
	switch priv := h.private.(type) {
	case nil:
		der, err = encoding.EncodePublicKeyPKIX(h.public)
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		der, err = encoding.EncodePKCS8(priv, nil)
	default:
		return 0, false, fmt.Errorf("%w: %T", ErrNotExportable, priv)
	}
	if err != nil {
		return 0, false, err
	}
	defer clear(der)

	if len(dst) < len(der) {
		return 0, false, nil
	}
	return copy(dst, der), true, nil
}

// Dispose scrubs and closes an owned handle. Borrowed handles are left to
// their owner.
func (h *handle) Dispose() {
	if !h.disposed.CompareAndSwap(false, true) {
		return
	}
	if !h.owns || h.private == nil {
		return
	}
	switch priv := h.private.(type) {
	case *rsa.PrivateKey:
		scrub(priv.D)
		for _, p := range priv.Primes {
			scrub(p)
		}
		scrub(priv.Precomputed.Dp)
		scrub(priv.Precomputed.Dq)
		scrub(priv.Precomputed.Qinv)
	case *ecdsa.PrivateKey:
		scrub(priv.D)
	}
	if c, ok := h.private.(io.Closer); ok {
		_ = c.Close()
	}
}

func scrub(n *big.Int) {
	if n == nil {
		return
	}
	clear(n.Bits())
	n.SetInt64(0)
}

// RSASecretKey wraps an RSA key pair or public key.
type RSASecretKey struct {
	handle
}

// NewRSAKey wraps an *rsa.PrivateKey, *rsa.PublicKey or a crypto.Signer with
// an RSA public key. owns controls whether Dispose releases the handle.
func NewRSAKey(key any, owns bool) (*RSASecretKey, error) {
	pub, priv, err := splitHandle(key)
	if err != nil {
		return nil, err
	}
	if _, ok := pub.(*rsa.PublicKey); !ok {
		return nil, fmt.Errorf("%w: expected RSA key, got %T", ErrInvalidKeyType, pub)
	}
	return &RSASecretKey{handle{public: pub, private: priv, owns: owns}}, nil
}

// GenerateRSAKey creates an owned RSA key pair.
func GenerateRSAKey(bits int) (*RSASecretKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("secret: generate RSA key: %w", err)
	}
	return NewRSAKey(priv, true)
}

// KeyType returns KeyTypeRSA.
func (k *RSASecretKey) KeyType() KeyType { return KeyTypeRSA }

// PublicKey returns the RSA public key.
func (k *RSASecretKey) PublicKey() *rsa.PublicKey {
	return k.public.(*rsa.PublicKey)
}

// KeySizeBits returns the modulus size in bits.
func (k *RSASecretKey) KeySizeBits() int {
	return k.PublicKey().N.BitLen()
}

// KeySizeBytes returns the modulus size in bytes, rounded down.
func (k *RSASecretKey) KeySizeBytes() int {
	return k.KeySizeBits() / 8
}

// Decrypter returns the private half as a crypto.Decrypter when it
// supports decryption.
func (k *RSASecretKey) Decrypter() (crypto.Decrypter, bool) {
	d, ok := k.Signer().(crypto.Decrypter)
	return d, ok
}

// ECCSecretKey wraps an ECDSA key pair or public key.
type ECCSecretKey struct {
	handle
}

// NewECCKey wraps an *ecdsa.PrivateKey, *ecdsa.PublicKey or a crypto.Signer
// with an ECDSA public key. owns controls whether Dispose releases the handle.
func NewECCKey(key any, owns bool) (*ECCSecretKey, error) {
	pub, priv, err := splitHandle(key)
	if err != nil {
		return nil, err
	}
	if _, ok := pub.(*ecdsa.PublicKey); !ok {
		return nil, fmt.Errorf("%w: expected ECC key, got %T", ErrInvalidKeyType, pub)
	}
	return &ECCSecretKey{handle{public: pub, private: priv, owns: owns}}, nil
}

// GenerateECCKey creates an owned ECDSA key pair on curve.
func GenerateECCKey(curve elliptic.Curve) (*ECCSecretKey, error) {
	priv, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("secret: generate ECC key: %w", err)
	}
	return NewECCKey(priv, true)
}

// KeyType returns KeyTypeECC.
func (k *ECCSecretKey) KeyType() KeyType { return KeyTypeECC }

// PublicKey returns the ECDSA public key.
func (k *ECCSecretKey) PublicKey() *ecdsa.PublicKey {
	return k.public.(*ecdsa.PublicKey)
}

// Curve returns the key's curve.
func (k *ECCSecretKey) Curve() elliptic.Curve {
	return k.PublicKey().Curve
}

// KeySizeBits returns the curve size in bits.
func (k *ECCSecretKey) KeySizeBits() int {
	return k.Curve().Params().BitSize
}

// KeySizeBytes returns the curve size in bytes, rounded down.
func (k *ECCSecretKey) KeySizeBytes() int {
	return k.KeySizeBits() / 8
}

// PrivateKey returns the in-memory ECDSA private key when available. ECDH
// needs the scalar, which hardware-backed signers do not expose.
func (k *ECCSecretKey) PrivateKey() (*ecdsa.PrivateKey, bool) {
	priv, ok := k.Signer().(*ecdsa.PrivateKey)
	return priv, ok
}

// NewCertificateKey builds an RSA or ECC key from cert. privateKey may be nil
// for a verify-only key; otherwise its public half must match the
// certificate.
func NewCertificateKey(cert *x509.Certificate, privateKey crypto.Signer, owns bool) (SecretKey, error) {
	if cert == nil {
		return nil, fmt.Errorf("%w: nil certificate", ErrInvalidKey)
	}
	var material any = cert.PublicKey
	if privateKey != nil {
		pub, ok := privateKey.Public().(interface{ Equal(crypto.PublicKey) bool })
		if !ok || !pub.Equal(cert.PublicKey) {
			return nil, fmt.Errorf("%w: private key does not match certificate", ErrInvalidKey)
		}
		material = privateKey
	}

	switch cert.PublicKey.(type) {
	case *rsa.PublicKey:
		k, err := NewRSAKey(material, owns)
		if err != nil {
			return nil, err
		}
		k.cert = cert
		return k, nil
	case *ecdsa.PublicKey:
		k, err := NewECCKey(material, owns)
		if err != nil {
			return nil, err
		}
		k.cert = cert
		return k, nil
	default:
		return nil, fmt.Errorf("%w: unsupported certificate key %T", ErrInvalidKeyType, cert.PublicKey)
	}
}

// splitHandle separates a native key into its public and private halves.
func splitHandle(key any) (crypto.PublicKey, crypto.Signer, error) {
	switch k := key.(type) {
	case nil:
		return nil, nil, fmt.Errorf("%w: nil key", ErrInvalidKey)
	case *rsa.PublicKey:
		if k == nil || k.N == nil {
			return nil, nil, fmt.Errorf("%w: nil RSA public key", ErrInvalidKey)
		}
		return k, nil, nil
	case *ecdsa.PublicKey:
		if k == nil || k.Curve == nil {
			return nil, nil, fmt.Errorf("%w: nil ECC public key", ErrInvalidKey)
		}
		return k, nil, nil
	case crypto.Signer:
		pub := k.Public()
		if pub == nil {
			return nil, nil, fmt.Errorf("%w: signer has no public key", ErrInvalidKey)
		}
		return pub, k, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported key handle %T", ErrInvalidKeyType, key)
	}
}
