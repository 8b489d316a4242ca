// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hemtt

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// KDFParams configures Argon2id, with enforced minimums so a caller can't
// accidentally encrypt a private key with a trivially brute-forceable
// work factor (spec §4.I).
type KDFParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// Minimum KDF parameters; EncryptPrivateKey rejects anything weaker.
const (
	minMemoryKiB   = 64 * 1024
	minIterations  = 3
	minParallelism = 1
)

// DefaultKDFParams is a reasonable interactive-use default, well above
// the enforced minimums.
var DefaultKDFParams = KDFParams{MemoryKiB: 256 * 1024, Iterations: 4, Parallelism: 2}

var errWeakKDF = errors.New("hemtt: kdf parameters below enforced minimum")

func (p KDFParams) validate() error {
	if p.MemoryKiB < minMemoryKiB || p.Iterations < minIterations || p.Parallelism < minParallelism {
		return errWeakKDF
	}
	return nil
}

const (
	saltLen  = 16
	nonceLen = chacha20poly1305.NonceSizeX
)

// EncryptedPrivateKey is the on-disk wrapper around an RSA2 private key
// blob: a random salt and nonce, the Argon2id parameters used to derive
// the wrapping key, and the ChaCha20-Poly1305 ciphertext.
type EncryptedPrivateKey struct {
	Salt       [saltLen]byte
	Nonce      [nonceLen]byte
	Ciphertext []byte
	Params     KDFParams
}

func deriveKey(password string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, chacha20poly1305.KeySize)
}

// EncryptPrivateKey wraps priv's RSA2 wire form under password, deriving
// a key via Argon2id and sealing with XChaCha20-Poly1305 under a random
// salt and nonce.
func EncryptPrivateKey(priv *PrivateKey, password string, params KDFParams) (*EncryptedPrivateKey, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	var salt [saltLen]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	key := deriveKey(password, salt[:], params)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext := priv.MarshalPrivateKey()
	ciphertext := aead.Seal(nil, nonce[:], plaintext, nil)
	return &EncryptedPrivateKey{Salt: salt, Nonce: nonce, Ciphertext: ciphertext, Params: params}, nil
}

// ErrWrongPassword is returned by DecryptPrivateKey when authentication
// fails — a wrong password or a corrupted blob, indistinguishable by
// design under AEAD.
var ErrWrongPassword = errors.New("hemtt: wrong password or corrupted key")

// DecryptPrivateKey reverses EncryptPrivateKey and re-parses the
// recovered RSA2 blob.
func DecryptPrivateKey(enc *EncryptedPrivateKey, password string) (*PrivateKey, error) {
	key := deriveKey(password, enc.Salt[:], enc.Params)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, enc.Nonce[:], enc.Ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return ParsePrivateKey(plaintext)
}

// Marshal serializes enc to the length-prefixed wire form: salt, nonce,
// ciphertext, kdf_params (memory, iterations, parallelism as u32/u32/u8).
func (enc *EncryptedPrivateKey) Marshal() []byte {
	var out []byte
	out = append(out, enc.Salt[:]...)
	out = append(out, enc.Nonce[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(enc.Ciphertext)))
	out = append(out, lenBuf[:]...)
	out = append(out, enc.Ciphertext...)
	binary.LittleEndian.PutUint32(lenBuf[:], enc.Params.MemoryKiB)
	out = append(out, lenBuf[:]...)
	binary.LittleEndian.PutUint32(lenBuf[:], enc.Params.Iterations)
	out = append(out, lenBuf[:]...)
	out = append(out, enc.Params.Parallelism)
	return out
}

// UnmarshalEncryptedPrivateKey parses the wire form produced by Marshal.
func UnmarshalEncryptedPrivateKey(b []byte) (*EncryptedPrivateKey, error) {
	need := saltLen + nonceLen + 4
	if len(b) < need {
		return nil, fmt.Errorf("hemtt: truncated encrypted key (need at least %d bytes)", need)
	}
	var enc EncryptedPrivateKey
	pos := 0
	copy(enc.Salt[:], b[pos:pos+saltLen])
	pos += saltLen
	copy(enc.Nonce[:], b[pos:pos+nonceLen])
	pos += nonceLen
	ctLen := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
	pos += 4
	if pos+ctLen+4+4+1 > len(b) {
		return nil, errors.New("hemtt: truncated encrypted key ciphertext")
	}
	enc.Ciphertext = append([]byte(nil), b[pos:pos+ctLen]...)
	pos += ctLen
	enc.Params.MemoryKiB = binary.LittleEndian.Uint32(b[pos : pos+4])
	pos += 4
	enc.Params.Iterations = binary.LittleEndian.Uint32(b[pos : pos+4])
	pos += 4
	enc.Params.Parallelism = b[pos]
	return &enc, nil
}
