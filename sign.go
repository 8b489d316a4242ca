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
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"path"
	"sort"
	"strings"
)

// SignatureVersion distinguishes the two supported extension-filter sets
// (spec §4.I).
type SignatureVersion int

const (
	SignatureV2 SignatureVersion = iota
	SignatureV3
)

// Signature is the on-disk artifact produced by Sign: three hash
// signatures plus the public parameters needed to verify them.
type Signature struct {
	Version   SignatureVersion
	Authority string
	BitLength int
	Exponent  uint32
	N         *big.Int
	Sig1      *big.Int
	Sig2      *big.Int
	Sig3      *big.Int
}

// SignatureV2ExcludedExtensions lists the file extensions V2 signing
// excludes from filehash — binary/media assets the old toolchain never
// covered.
var SignatureV2ExcludedExtensions = splitExt("paa jpg p3d tga rvmat lip ogg wss png rtm pac fxy wrp")

// SignatureV3Extensions lists the file extensions V3 signing includes in
// filehash — the source-like formats the newer signature scheme actually
// cares about protecting.
var SignatureV3Extensions = splitExt("sqf inc bikb ext fsm sqm hpp cfg sqs h sqfc")

func splitExt(s string) map[string]bool {
	m := map[string]bool{}
	for _, e := range strings.Fields(s) {
		m[e] = true
	}
	return m
}

func extOf(name string) string {
	e := path.Ext(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(strings.ToLower(e), ".")
}

// hashStages computes the three SHA-1 digests required to sign or verify
// a PBO under a given version filter, following spec §4.I's hashing
// stages exactly.
func hashStages(p *PBO, prefix string, version SignatureVersion) (hash1, hash2, hash3 [20]byte, err error) {
	hash1 = p.Checksum()

	names := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	order := sortPBOFiles(names)
	sorted := make([]string, len(names))
	for i, idx := range order {
		sorted[i] = names[idx]
	}

	nh := sha1.New()
	for _, n := range sorted {
		nh.Write([]byte(normalizePBOName(n)))
	}
	var namehash [20]byte
	copy(namehash[:], nh.Sum(nil))

	fh := sha1.New()
	qualifies := func(name string) bool {
		ext := extOf(name)
		if version == SignatureV2 {
			return !SignatureV2ExcludedExtensions[ext]
		}
		return SignatureV3Extensions[ext]
	}
	any := false
	for _, e := range p.Entries {
		if e.Name == "" || !qualifies(e.Name) {
			continue
		}
		any = true
		r, rerr := p.File(e.Name)
		if rerr != nil {
			return hash1, hash2, hash3, rerr
		}
		body := make([]byte, e.Size)
		if _, rerr := readFull(r, body); rerr != nil {
			return hash1, hash2, hash3, rerr
		}
		fh.Write(body)
	}
	if !any {
		if version == SignatureV2 {
			fh.Write([]byte("nothing"))
		} else {
			fh.Write([]byte("gnihton"))
		}
	}
	var filehash [20]byte
	copy(filehash[:], fh.Sum(nil))

	normPrefix := strings.TrimSuffix(prefix, "\\") + "\\"

	h2 := sha1.New()
	h2.Write(hash1[:])
	h2.Write(namehash[:])
	h2.Write([]byte(normPrefix))
	copy(hash2[:], h2.Sum(nil))

	h3 := sha1.New()
	h3.Write(filehash[:])
	h3.Write(namehash[:])
	h3.Write([]byte(normPrefix))
	copy(hash3[:], h3.Sum(nil))

	return hash1, hash2, hash3, nil
}

func readFull(r io.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}

// padToModulus left-pads digest with a PKCS#1-v1.5-style fixed prefix
// (0x00 0x01 0xff...0xff 0x00) up to byteLen bytes before treating the
// result as a big-endian integer, matching the legacy Bohemia scheme's
// padding convention rather than RFC 8017's DigestInfo ASN.1 prefix.
func padToModulus(digest [20]byte, byteLen int) *big.Int {
	buf := make([]byte, byteLen)
	buf[0] = 0x00
	buf[1] = 0x01
	for i := 2; i < byteLen-21; i++ {
		buf[i] = 0xff
	}
	buf[byteLen-21] = 0x00
	copy(buf[byteLen-20:], digest[:])
	return new(big.Int).SetBytes(buf)
}

// Sign produces a Signature over p under priv, using prefix as the
// addon's backslash-suffixed install path.
func Sign(p *PBO, priv *PrivateKey, prefix string, version SignatureVersion) (*Signature, error) {
	h1, h2, h3, err := hashStages(p, prefix, version)
	if err != nil {
		return nil, err
	}
	byteLen := priv.BitLength / 8
	m1 := padToModulus(h1, byteLen)
	m2 := padToModulus(h2, byteLen)
	m3 := padToModulus(h3, byteLen)

	sig := func(m *big.Int) *big.Int {
		return new(big.Int).Exp(m, priv.D, priv.N)
	}
	return &Signature{
		Version: version, Authority: priv.Authority, BitLength: priv.BitLength, Exponent: priv.Exponent,
		N: priv.N, Sig1: sig(m1), Sig2: sig(m2), Sig3: sig(m3),
	}, nil
}

// ErrSignatureMismatch is returned by Verify when a digest doesn't match
// or the PBO fails its own sortedness precondition.
var ErrSignatureMismatch = errors.New("hemtt: signature verification failed")

// Verify checks sig against p, rejecting mismatched authorities, an
// unsorted PBO, or any of the three hash stages failing to match.
func Verify(p *PBO, pub *PublicKey, sig *Signature, prefix string) error {
	if sig.Authority != pub.Authority {
		return fmt.Errorf("hemtt: authority mismatch: signature %q, key %q", sig.Authority, pub.Authority)
	}
	if !p.IsSortedEntries() {
		return fmt.Errorf("hemtt: %w: pbo entries are not in canonical sorted order", ErrSignatureMismatch)
	}
	h1, h2, h3, err := hashStages(p, prefix, sig.Version)
	if err != nil {
		return err
	}
	exp := big.NewInt(int64(pub.Exponent))

	check := func(name string, s *big.Int, want [20]byte) error {
		got := new(big.Int).Exp(s, exp, pub.N)
		gotBytes := got.Bytes()
		if len(gotBytes) < 20 {
			return fmt.Errorf("%w: %s too short", ErrSignatureMismatch, name)
		}
		tail := gotBytes[len(gotBytes)-20:]
		if hex.EncodeToString(tail) != hex.EncodeToString(want[:]) {
			return fmt.Errorf("%w: %s mismatch (got %s, want %s)", ErrSignatureMismatch, name,
				sanitizeHashHex(tail), sanitizeHashHex(want[:]))
		}
		return nil
	}
	if err := check("hash1", sig.Sig1, h1); err != nil {
		return err
	}
	if err := check("hash2", sig.Sig2, h2); err != nil {
		return err
	}
	if err := check("hash3", sig.Sig3, h3); err != nil {
		extensions, verb := SignatureV3Extensions, "covers"
		if sig.Version == SignatureV2 {
			extensions, verb = SignatureV2ExcludedExtensions, "excludes"
		}
		return fmt.Errorf("%w (filehash stage %s extensions: %s)", err, verb, strings.Join(sortedExtensionList(extensions), ", "))
	}
	return nil
}

// sanitizeHashHex trims a common leading run of 0xff padding bytes before
// hex-encoding, so verification errors don't bury the useful tail under
// a wall of repeated padding.
func sanitizeHashHex(b []byte) string {
	i := 0
	for i < len(b) && b[i] == 0xff {
		i++
	}
	return hex.EncodeToString(b[i:])
}

// sortedExtensionList is a tiny helper used by diagnostics that want a
// deterministic, human-readable rendering of a version's extension
// filter.
func sortedExtensionList(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
