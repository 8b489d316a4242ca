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
	"io"
	"testing"
)

func TestPBOWriteReadOrdering(t *testing.T) {
	files := []PBOFile{
		{Name: "config.cpp", Data: []byte("class CfgPatches {};")},
		{Name: "Addons\\zzz.paa", Data: []byte("paa-bytes")},
		{Name: "Addons\\aaa.paa", Data: []byte("more-paa-bytes")},
	}
	var buf bytes.Buffer
	extensions := []PBOExtension{{Key: "prefix", Value: "mymod"}, {Key: "author", Value: "zzz_first_alphabetically"}}
	if err := WritePBO(&buf, files, extensions); err != nil {
		t.Fatalf("WritePBO: %v", err)
	}

	blob := buf.Bytes()
	p, err := ReadPBO(blob, bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("ReadPBO: %v", err)
	}
	if v, ok := p.Extension("prefix"); !ok || v != "mymod" {
		t.Fatalf("want extension prefix=mymod, got %+v", p.Extensions)
	}
	if len(p.Extensions) != 2 || p.Extensions[0].Key != "prefix" || p.Extensions[1].Key != "author" {
		t.Fatalf("want extensions preserved in wire order prefix,author, got %+v", p.Extensions)
	}
	var buf2 bytes.Buffer
	if err := WritePBO(&buf2, files, extensions); err != nil {
		t.Fatalf("second WritePBO: %v", err)
	}
	if !bytes.Equal(blob, buf2.Bytes()) {
		t.Fatalf("want WritePBO to be deterministic across repeated calls with the same extensions")
	}
	if !p.IsSortedEntries() {
		t.Fatalf("want entries in canonical sorted order, got %+v", p.Entries)
	}
	wantOrder := []string{"Addons\\aaa.paa", "Addons\\zzz.paa", "config.cpp"}
	if len(p.Entries) != len(wantOrder) {
		t.Fatalf("want %d entries, got %d", len(wantOrder), len(p.Entries))
	}
	for i, name := range wantOrder {
		if p.Entries[i].Name != name {
			t.Fatalf("entry %d: want %q, got %q", i, name, p.Entries[i].Name)
		}
	}

	r, err := p.File("Addons\\aaa.paa")
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "more-paa-bytes" {
		t.Fatalf("want body %q, got %q", "more-paa-bytes", got)
	}
}

func TestPBOChecksumRoundTrips(t *testing.T) {
	files := []PBOFile{
		{Name: "a.sqf", Data: []byte("hint \"a\";")},
		{Name: "b.sqf", Data: []byte("hint \"b\";")},
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
	want := p.Checksum()
	got, err := p.GenChecksum()
	if err != nil {
		t.Fatalf("GenChecksum: %v", err)
	}
	if want != got {
		t.Fatalf("checksum mismatch: stored %x, recomputed %x", want, got)
	}
}

func TestPBOChecksumRoundTripsWithMultipleExtensions(t *testing.T) {
	files := []PBOFile{
		{Name: "a.sqf", Data: []byte("hint \"a\";")},
		{Name: "b.sqf", Data: []byte("hint \"b\";")},
	}
	extensions := []PBOExtension{
		{Key: "prefix", Value: "mymod"},
		{Key: "author", Value: "someone"},
		{Key: "version", Value: "1.0"},
	}
	var buf bytes.Buffer
	if err := WritePBO(&buf, files, extensions); err != nil {
		t.Fatalf("WritePBO: %v", err)
	}
	blob := buf.Bytes()
	p, err := ReadPBO(blob, bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("ReadPBO: %v", err)
	}
	want := p.Checksum()
	got, err := p.GenChecksum()
	if err != nil {
		t.Fatalf("GenChecksum: %v", err)
	}
	if want != got {
		t.Fatalf("checksum mismatch with %d extensions: stored %x, recomputed %x", len(extensions), want, got)
	}
}

func TestPBOUnsortedNamesDetected(t *testing.T) {
	if IsSorted([]string{"zzz.paa", "aaa.paa"}) {
		t.Fatalf("want unsorted names reported as unsorted")
	}
	if !IsSorted([]string{"aaa.paa", "zzz.paa"}) {
		t.Fatalf("want already-sorted names reported as sorted")
	}
}

func TestPBOReadRejectsTruncatedInput(t *testing.T) {
	_, err := ReadPBO([]byte{1, 2, 3}, bytes.NewReader(nil))
	if err == nil {
		t.Fatalf("want an error parsing a truncated/non-PBO blob")
	}
}
