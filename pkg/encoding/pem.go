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

package encoding

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types
const (
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypeRSAPublicKey        = "RSA PUBLIC KEY"
	PEMTypePublicKey           = "PUBLIC KEY"
	PEMTypeCertificate         = "CERTIFICATE"
)

// EncodePrivateKeyPEM encodes a private key as a PKCS#8 "PRIVATE KEY"
// block, or an "ENCRYPTED PRIVATE KEY" block when password is set.
//
// Example:
//
//	pemData, err := encoding.EncodePrivateKeyPEM(privateKey, []byte("password"))
func EncodePrivateKeyPEM(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	der, err := EncodePKCS8(privateKey, password)
	if err != nil {
		return nil, err
	}
	defer clear(der)

	blockType := PEMTypePrivateKey
	if len(password) > 0 {
		blockType = PEMTypeEncryptedPrivateKey
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}

// DecodePrivateKeyPEM decodes the first PEM block of data as a private key.
// PKCS#8 (plain or encrypted), PKCS#1 RSA and SEC 1 EC blocks are accepted.
//
// Example:
//
//	key, err := encoding.DecodePrivateKeyPEM(pemData, []byte("password"))
//	rsaKey := key.(*rsa.PrivateKey)
func DecodePrivateKeyPEM(data []byte, password []byte) (crypto.PrivateKey, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}
	return parsePrivateKeyBlock(block, password)
}

// EncodePublicKeyPEM encodes a public key as a PKIX "PUBLIC KEY" block.
func EncodePublicKeyPEM(publicKey crypto.PublicKey) ([]byte, error) {
	der, err := EncodePublicKeyPKIX(publicKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypePublicKey, Bytes: der}), nil
}

// DecodePublicKeyPEM decodes the first PEM block of data as a PKIX or
// PKCS#1 RSA public key.
func DecodePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}
	return parsePublicKeyBlock(block)
}

// EncodeCertificatePEM encodes an X.509 certificate to PEM format.
func EncodeCertificatePEM(cert *x509.Certificate) ([]byte, error) {
	if cert == nil || len(cert.Raw) == 0 {
		return nil, ErrInvalidCertificate
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: cert.Raw}), nil
}

// DecodeCertificateChainPEM decodes every CERTIFICATE block of data in
// order, typically leaf to root. Other block types are skipped.
//
// Example:
//
//	certs, err := encoding.DecodeCertificateChainPEM(pemData)
func DecodeCertificateChainPEM(data []byte) ([]*x509.Certificate, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}

	var certs []*x509.Certificate
	for rest := data; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != PEMTypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, ErrInvalidPEMEncoding
	}
	return certs, nil
}

// DecodePEM decodes the first PEM block of data by its type. It returns a
// crypto.PrivateKey, a crypto.PublicKey or an *x509.Certificate.
func DecodePEM(data []byte, password []byte) (any, error) {
	block, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case PEMTypePrivateKey, PEMTypeEncryptedPrivateKey, PEMTypeRSAPrivateKey, PEMTypeECPrivateKey:
		return parsePrivateKeyBlock(block, password)
	case PEMTypePublicKey, PEMTypeRSAPublicKey:
		return parsePublicKeyBlock(block)
	case PEMTypeCertificate:
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
		}
		return cert, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPEMType, block.Type)
	}
}

func decodeBlock(data []byte) (*pem.Block, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEMEncoding
	}
	return block, nil
}

func parsePrivateKeyBlock(block *pem.Block, password []byte) (crypto.PrivateKey, error) {
	switch block.Type {
	case PEMTypeEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}
		return DecodePKCS8(block.Bytes, password)
	case PEMTypePrivateKey:
		return DecodePKCS8(block.Bytes, nil)
	case PEMTypeRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
		}
		return key, nil
	case PEMTypeECPrivateKey:
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %q is not a private key", ErrUnsupportedPEMType, block.Type)
	}
}

func parsePublicKeyBlock(block *pem.Block) (crypto.PublicKey, error) {
	switch block.Type {
	case PEMTypePublicKey:
		return DecodePublicKeyPKIX(block.Bytes)
	case PEMTypeRSAPublicKey:
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %q is not a public key", ErrUnsupportedPEMType, block.Type)
	}
}
