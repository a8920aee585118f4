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

package aead

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// HasAESNI reports whether the CPU has AES hardware instructions
// (AES-NI on x86, the crypto extensions on arm64).
func HasAESNI() bool {
	switch runtime.GOARCH {
	case "amd64", "386":
		return cpu.X86.HasAES && cpu.X86.HasPCLMULQDQ
	case "arm64":
		return cpu.ARM64.HasAES && cpu.ARM64.HasPMULL
	case "s390x":
		return cpu.S390X.HasAES && cpu.S390X.HasGHASH
	default:
		return false
	}
}

// SelectOptimal returns the content encryption code to use when the caller
// did not choose one. GCM is preferred whenever the CPU accelerates AES and
// GHASH, or the key is hardware backed. Without acceleration GHASH runs in a
// slow constant-time software path, so the HMAC based composite is chosen
// instead.
func SelectOptimal(isHardwareBacked bool) string {
	if isHardwareBacked || HasAESNI() {
		return A256GCM
	}
	return A256CBCHS512
}

// IsGCM reports whether code names an AES-GCM content cipher.
func IsGCM(code string) bool {
	switch code {
	case A128GCM, A192GCM, A256GCM:
		return true
	}
	return false
}

// IsCBCHMAC reports whether code names an AES-CBC-HMAC-SHA2 content cipher.
func IsCBCHMAC(code string) bool {
	switch code {
	case A128CBCHS256, A192CBCHS384, A256CBCHS512:
		return true
	}
	return false
}
