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
	"crypto/rsa"
	"encoding/binary"
	"errors"
	"math/big"
)

// DefaultKeyBits is the default RSA modulus size for newly generated
// signing keys (spec §4.I).
const DefaultKeyBits = 1024

// PrivateKey is a Bohemia-style RSA private key: the CRT components plus
// the authority name it signs for.
type PrivateKey struct {
	Authority string
	BitLength int
	Exponent  uint32
	N         *big.Int
	P         *big.Int
	Q         *big.Int
	Dmp1      *big.Int
	Dmq1      *big.Int
	Iqmp      *big.Int
	D         *big.Int
}

// PublicKey is the subset of a PrivateKey distributed alongside signed
// content for verification.
type PublicKey struct {
	Authority string
	BitLength int
	Exponent  uint32
	N         *big.Int
}

// GenerateKeyPair creates a new RSA keypair for authority at the given
// modulus size, defaulting to DefaultKeyBits when bits <= 0.
func GenerateKeyPair(authority string, bits int) (*PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}
	key.Precompute()
	return &PrivateKey{
		Authority: authority,
		BitLength: bits,
		Exponent:  uint32(key.PublicKey.E),
		N:         key.N,
		P:         key.Primes[0],
		Q:         key.Primes[1],
		Dmp1:      key.Precomputed.Dp,
		Dmq1:      key.Precomputed.Dq,
		Iqmp:      key.Precomputed.Qinv,
		D:         key.D,
	}, nil
}

// Public returns the public half of priv.
func (priv *PrivateKey) Public() *PublicKey {
	return &PublicKey{Authority: priv.Authority, BitLength: priv.BitLength, Exponent: priv.Exponent, N: priv.N}
}

// wire helpers: C-string authority, u32 length-prefixed blob, ASCII
// RSA1/RSA2 tag, u32 bit-length, u32 exponent, then big-number bodies in
// little-endian with length derived from length_bits (spec §3).

func writeCString(out *[]byte, s string) {
	*out = append(*out, s...)
	*out = append(*out, 0)
}

func writeU32(out *[]byte, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	*out = append(*out, b[:]...)
}

// bigToLE renders v as a little-endian byte string padded/truncated to
// byteLen bytes, the wire convention for RSA big-number bodies.
func bigToLE(v *big.Int, byteLen int) []byte {
	be := v.Bytes()
	out := make([]byte, byteLen)
	for i := 0; i < len(be) && i < byteLen; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

func leToBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, v := range b {
		be[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(be)
}

// MarshalPublicKey encodes pub into the RSA1 wire form.
func (pub *PublicKey) MarshalPublicKey() []byte {
	var blob []byte
	blob = append(blob, "RSA1"...)
	writeU32(&blob, uint32(pub.BitLength))
	writeU32(&blob, pub.Exponent)
	nBytes := bigToLE(pub.N, pub.BitLength/8)
	blob = append(blob, nBytes...)

	var out []byte
	writeCString(&out, pub.Authority)
	writeU32(&out, uint32(len(blob)))
	out = append(out, blob...)
	return out
}

// MarshalPrivateKey encodes priv into the RSA2 wire form: n, p, q, dmp1,
// dmq1, iqmp, d, each sized by length_bits (p/q/dmp1/dmq1/iqmp at half
// size, n/d at full size), matching the CRT layout OpenSSL/Bohemia tools
// both use.
func (priv *PrivateKey) MarshalPrivateKey() []byte {
	full := priv.BitLength / 8
	half := full / 2

	var blob []byte
	blob = append(blob, "RSA2"...)
	writeU32(&blob, uint32(priv.BitLength))
	writeU32(&blob, priv.Exponent)
	blob = append(blob, bigToLE(priv.N, full)...)
	blob = append(blob, bigToLE(priv.P, half)...)
	blob = append(blob, bigToLE(priv.Q, half)...)
	blob = append(blob, bigToLE(priv.Dmp1, half)...)
	blob = append(blob, bigToLE(priv.Dmq1, half)...)
	blob = append(blob, bigToLE(priv.Iqmp, half)...)
	blob = append(blob, bigToLE(priv.D, full)...)

	var out []byte
	writeCString(&out, priv.Authority)
	writeU32(&out, uint32(len(blob)))
	out = append(out, blob...)
	return out
}

var errBadKeyTag = errors.New("hemtt: unrecognized key wire tag")

func readCString(b []byte, pos *int) (string, error) {
	start := *pos
	for *pos < len(b) && b[*pos] != 0 {
		*pos++
	}
	if *pos >= len(b) {
		return "", errors.New("hemtt: truncated key blob")
	}
	s := string(b[start:*pos])
	*pos++
	return s, nil
}

func readU32(b []byte, pos *int) (uint32, error) {
	if *pos+4 > len(b) {
		return 0, errors.New("hemtt: truncated key blob")
	}
	v := binary.LittleEndian.Uint32(b[*pos : *pos+4])
	*pos += 4
	return v, nil
}

// ParsePublicKey decodes the RSA1 wire form produced by MarshalPublicKey.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	pos := 0
	authority, err := readCString(b, &pos)
	if err != nil {
		return nil, err
	}
	if _, err := readU32(b, &pos); err != nil { // blob length, unused on read
		return nil, err
	}
	if pos+4 > len(b) || string(b[pos:pos+4]) != "RSA1" {
		return nil, errBadKeyTag
	}
	pos += 4
	bits, err := readU32(b, &pos)
	if err != nil {
		return nil, err
	}
	exp, err := readU32(b, &pos)
	if err != nil {
		return nil, err
	}
	full := int(bits) / 8
	if pos+full > len(b) {
		return nil, errors.New("hemtt: truncated key blob")
	}
	n := leToBig(b[pos : pos+full])
	return &PublicKey{Authority: authority, BitLength: int(bits), Exponent: exp, N: n}, nil
}

// ParsePrivateKey decodes the RSA2 wire form produced by MarshalPrivateKey.
func ParsePrivateKey(b []byte) (*PrivateKey, error) {
	pos := 0
	authority, err := readCString(b, &pos)
	if err != nil {
		return nil, err
	}
	if _, err := readU32(b, &pos); err != nil {
		return nil, err
	}
	if pos+4 > len(b) || string(b[pos:pos+4]) != "RSA2" {
		return nil, errBadKeyTag
	}
	pos += 4
	bits, err := readU32(b, &pos)
	if err != nil {
		return nil, err
	}
	exp, err := readU32(b, &pos)
	if err != nil {
		return nil, err
	}
	full := int(bits) / 8
	half := full / 2
	readBig := func(n int) (*big.Int, error) {
		if pos+n > len(b) {
			return nil, errors.New("hemtt: truncated key blob")
		}
		v := leToBig(b[pos : pos+n])
		pos += n
		return v, nil
	}
	n, err := readBig(full)
	if err != nil {
		return nil, err
	}
	p, err := readBig(half)
	if err != nil {
		return nil, err
	}
	q, err := readBig(half)
	if err != nil {
		return nil, err
	}
	dmp1, err := readBig(half)
	if err != nil {
		return nil, err
	}
	dmq1, err := readBig(half)
	if err != nil {
		return nil, err
	}
	iqmp, err := readBig(half)
	if err != nil {
		return nil, err
	}
	d, err := readBig(full)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{
		Authority: authority, BitLength: int(bits), Exponent: exp,
		N: n, P: p, Q: q, Dmp1: dmp1, Dmq1: dmq1, Iqmp: iqmp, D: d,
	}, nil
}
