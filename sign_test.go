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
	"bytes"
	"testing"
)

func testPBO(t *testing.T) *PBO {
	t.Helper()
	files := []PBOFile{
		{Name: "config.cpp", Data: []byte("class CfgPatches {};")},
		{Name: "fn_init.sqf", Data: []byte("hint \"hi\";")},
	}
	var buf bytes.Buffer
	if err := WritePBO(&buf, files, nil); err != nil {
		t.Fatalf("WritePBO: %v", err)
	}
	blob := buf.Bytes()
	p, err := ReadPBO(blob, bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("ReadPBO: %v", err)
	}
	return p
}

func TestSignKeyWireRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	privBlob := priv.MarshalPrivateKey()
	back, err := ParsePrivateKey(privBlob)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if back.Authority != priv.Authority || back.BitLength != priv.BitLength || back.Exponent != priv.Exponent {
		t.Fatalf("private key header mismatch: want %+v, got %+v", priv, back)
	}
	if back.N.Cmp(priv.N) != 0 || back.D.Cmp(priv.D) != 0 {
		t.Fatalf("private key N/D mismatch after round trip")
	}

	pub := priv.Public()
	pubBlob := pub.MarshalPublicKey()
	backPub, err := ParsePublicKey(pubBlob)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if backPub.Authority != pub.Authority || backPub.N.Cmp(pub.N) != 0 {
		t.Fatalf("public key mismatch after round trip: want %+v, got %+v", pub, backPub)
	}
}

func TestSignVerifyV2(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	p := testPBO(t)
	sig, err := Sign(p, priv, "x\\my_mod\\addons\\core", SignatureV2)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(p, priv.Public(), sig, "x\\my_mod\\addons\\core"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestSignVerifyV3(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	p := testPBO(t)
	sig, err := Sign(p, priv, "x\\my_mod\\addons\\core", SignatureV3)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(p, priv.Public(), sig, "x\\my_mod\\addons\\core"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestSignVerifyRejectsWrongPrefix(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	p := testPBO(t)
	sig, err := Sign(p, priv, "x\\my_mod\\addons\\core", SignatureV2)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(p, priv.Public(), sig, "x\\my_mod\\addons\\different"); err == nil {
		t.Fatalf("want verification to fail when the install prefix changes")
	}
}

func TestSignVerifyRejectsWrongAuthority(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	other, err := GenerateKeyPair("other_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	p := testPBO(t)
	sig, err := Sign(p, priv, "x\\my_mod\\addons\\core", SignatureV2)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(p, other.Public(), sig, "x\\my_mod\\addons\\core"); err == nil {
		t.Fatalf("want verification to fail against a mismatched authority's public key")
	}
}
