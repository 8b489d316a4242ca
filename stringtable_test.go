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

const testStringtableXML = `<?xml version="1.0" encoding="utf-8"?>
<Project name="Stringtable">
  <Package name="MyMod">
    <Container name="Messages">
      <Key ID="STR_MyMod_Messages_Zulu">
        <English>zulu text</English>
        <French>texte zoulou</French>
      </Key>
      <Key ID="STR_MyMod_Messages_Alpha">
        <English>alpha text</English>
      </Key>
    </Container>
  </Package>
</Project>
`

func TestParseStringtable(t *testing.T) {
	st, err := ParseStringtable([]byte(testStringtableXML))
	if err != nil {
		t.Fatalf("ParseStringtable: %v", err)
	}
	if st.Package != "MyMod" {
		t.Fatalf("want package MyMod, got %q", st.Package)
	}
	if len(st.Entries) != 2 {
		t.Fatalf("want 2 entries, got %d: %+v", len(st.Entries), st.Entries)
	}
	var zulu *StringtableKey
	for i := range st.Entries {
		if st.Entries[i].ID == "STR_MyMod_Messages_Zulu" {
			zulu = &st.Entries[i]
		}
	}
	if zulu == nil {
		t.Fatalf("want an entry with ID STR_MyMod_Messages_Zulu, got %+v", st.Entries)
	}
	if zulu.Container != "Messages" {
		t.Fatalf("want container Messages, got %q", zulu.Container)
	}
	if zulu.Values["English"] != "zulu text" || zulu.Values["French"] != "texte zoulou" {
		t.Fatalf("unexpected values: %+v", zulu.Values)
	}
}

func TestStringtableSortOrdersByID(t *testing.T) {
	st, err := ParseStringtable([]byte(testStringtableXML))
	if err != nil {
		t.Fatalf("ParseStringtable: %v", err)
	}
	// Parse order is Zulu then Alpha; Sort must flip that to ID-ascending.
	if st.Entries[0].ID != "STR_MyMod_Messages_Zulu" {
		t.Fatalf("fixture precondition broke: want parse order Zulu-first, got %+v", st.Entries)
	}
	st.Sort()
	if st.Entries[0].ID != "STR_MyMod_Messages_Alpha" || st.Entries[1].ID != "STR_MyMod_Messages_Zulu" {
		t.Fatalf("want ID-ascending order after Sort, got %q, %q", st.Entries[0].ID, st.Entries[1].ID)
	}
}

func TestRapifyStringtableRoundTrips(t *testing.T) {
	st, err := ParseStringtable([]byte(testStringtableXML))
	if err != nil {
		t.Fatalf("ParseStringtable: %v", err)
	}
	blob, err := RapifyStringtable(st)
	if err != nil {
		t.Fatalf("RapifyStringtable: %v", err)
	}
	cfg, err := Derapify(blob)
	if err != nil {
		t.Fatalf("Derapify: %v", err)
	}
	if len(cfg.Properties) != 1 || cfg.Properties[0].Kind != PropClass {
		t.Fatalf("want a single root class for the Messages container, got %+v", cfg.Properties)
	}
	container := cfg.Properties[0].Class
	if container.Name != "Messages" {
		t.Fatalf("want container class named Messages, got %q", container.Name)
	}
	if len(container.Props) != 2 {
		t.Fatalf("want 2 key classes under Messages, got %d", len(container.Props))
	}
	// RapifyStringtable sorts entries by ID first, so Alpha precedes Zulu.
	first := container.Props[0].Class
	if first.Name != "STR_MyMod_Messages_Alpha" {
		t.Fatalf("want the first nested class to be the ID-sorted Alpha key, got %q", first.Name)
	}
	var english *Entry
	for _, p := range first.Props {
		if p.Kind == PropEntry && p.Entry.Name == "English" {
			english = p.Entry
		}
	}
	if english == nil || english.Value.Kind != ValueStr || english.Value.Str != "alpha text" {
		t.Fatalf("want an English entry with text \"alpha text\", got %+v", english)
	}

	second := container.Props[1].Class
	if second.Name != "STR_MyMod_Messages_Zulu" {
		t.Fatalf("want the second nested class to be Zulu, got %q", second.Name)
	}
	var foundFrench bool
	for _, p := range second.Props {
		if p.Kind == PropEntry && p.Entry.Name == "French" && p.Entry.Value.Str == "texte zoulou" {
			foundFrench = true
		}
	}
	if !foundFrench {
		t.Fatalf("want Zulu's French entry to survive rapify/derapify, got %+v", second.Props)
	}
}
