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

import "testing"

// fastTestKDFParams sits right at the enforced minimum so encryption tests
// don't pay DefaultKDFParams' interactive-use cost.
var fastTestKDFParams = KDFParams{MemoryKiB: minMemoryKiB, Iterations: minIterations, Parallelism: minParallelism}

func TestEncryptDecryptPrivateKeyRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	enc, err := EncryptPrivateKey(priv, "correct horse battery staple", fastTestKDFParams)
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}

	back, err := DecryptPrivateKey(enc, "correct horse battery staple")
	if err != nil {
		t.Fatalf("DecryptPrivateKey: %v", err)
	}
	if back.Authority != priv.Authority || back.N.Cmp(priv.N) != 0 || back.D.Cmp(priv.D) != 0 {
		t.Fatalf("decrypted key does not match original")
	}
}

func TestDecryptPrivateKeyWrongPassword(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	enc, err := EncryptPrivateKey(priv, "correct horse battery staple", fastTestKDFParams)
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}
	if _, err := DecryptPrivateKey(enc, "wrong password"); err != ErrWrongPassword {
		t.Fatalf("want ErrWrongPassword, got %v", err)
	}
}

func TestEncryptPrivateKeyRejectsWeakParams(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	weak := KDFParams{MemoryKiB: 1, Iterations: 1, Parallelism: 1}
	if _, err := EncryptPrivateKey(priv, "pw", weak); err != errWeakKDF {
		t.Fatalf("want errWeakKDF, got %v", err)
	}
}

func TestEncryptedPrivateKeyWireRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair("my_authority", 512)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	enc, err := EncryptPrivateKey(priv, "hunter2", fastTestKDFParams)
	if err != nil {
		t.Fatalf("EncryptPrivateKey: %v", err)
	}
	blob := enc.Marshal()
	back, err := UnmarshalEncryptedPrivateKey(blob)
	if err != nil {
		t.Fatalf("UnmarshalEncryptedPrivateKey: %v", err)
	}
	if back.Salt != enc.Salt || back.Nonce != enc.Nonce || back.Params != enc.Params {
		t.Fatalf("wire round trip changed salt/nonce/params")
	}
	if string(back.Ciphertext) != string(enc.Ciphertext) {
		t.Fatalf("wire round trip changed ciphertext")
	}
	decrypted, err := DecryptPrivateKey(back, "hunter2")
	if err != nil {
		t.Fatalf("DecryptPrivateKey after wire round trip: %v", err)
	}
	if decrypted.N.Cmp(priv.N) != 0 {
		t.Fatalf("decrypted key after wire round trip does not match original")
	}
}
