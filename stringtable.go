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
	"encoding/xml"
	"fmt"
	"sort"
)

// Languages is the authoritative language-ordering table stringtable
// rapification depends on (spec §9): every language a stringtable may
// carry, in the fixed order rapify must emit them. Kept as the single
// exported source of truth rather than duplicated per call site.
//
// stdlib encoding/xml parses the .xml source form; no third-party XML
// library appears anywhere in the reference pack, so this is the one
// deliberate stdlib choice in an otherwise ecosystem-heavy module (see
// the grounding ledger).
var Languages = []string{
	"Original", "English", "Czech", "French", "German", "Italian",
	"Polish", "Portuguese", "Russian", "Spanish", "Turkish", "Chinese",
	"Chinesesimp", "Japanese", "Korean",
}

func languageRank(name string) int {
	for i, l := range Languages {
		if l == name {
			return i
		}
	}
	return len(Languages) // unknown languages sort last, stably
}

// sortedLanguages returns values' language keys in Languages order, with
// any language absent from Languages (a modder's nonstandard locale tag)
// sorted after every known one and alphabetically among themselves — map
// iteration order would otherwise make those entries' position in the
// rapified output nondeterministic.
func sortedLanguages(values map[string]string) []string {
	langs := make([]string, 0, len(values))
	for lang := range values {
		langs = append(langs, lang)
	}
	sort.SliceStable(langs, func(i, j int) bool {
		ri, rj := languageRank(langs[i]), languageRank(langs[j])
		if ri != rj {
			return ri < rj
		}
		return langs[i] < langs[j]
	})
	return langs
}

// stringtableXML mirrors the on-disk Project/Package/Container/Key
// nesting of a stringtable.xml file.
type stringtableXML struct {
	XMLName  xml.Name           `xml:"Project"`
	Packages []stringtablePkgXML `xml:"Package"`
}

type stringtablePkgXML struct {
	Name       string               `xml:"name,attr"`
	Containers []stringtableContXML `xml:"Container"`
}

type stringtableContXML struct {
	Name string          `xml:"name,attr"`
	Keys []stringtableKeyXML `xml:"Key"`
}

type stringtableKeyXML struct {
	ID     string               `xml:"ID,attr"`
	Values []stringtableValueXML `xml:",any"`
}

type stringtableValueXML struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// StringtableKey is one parsed localization key: its fully-qualified ID
// (`STR_package_container_key`-style, taken verbatim from the XML ID
// attribute) and its per-language text.
type StringtableKey struct {
	ID        string
	Container string
	Values    map[string]string // language -> text
}

// Stringtable is a parsed stringtable.xml: its package name plus every
// key across all containers, flattened.
type Stringtable struct {
	Package string
	Entries []StringtableKey
}

// ParseStringtable decodes a stringtable.xml document.
func ParseStringtable(data []byte) (*Stringtable, error) {
	var doc stringtableXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("hemtt: parsing stringtable: %w", err)
	}
	st := &Stringtable{}
	for _, pkg := range doc.Packages {
		st.Package = pkg.Name
		for _, cont := range pkg.Containers {
			for _, key := range cont.Keys {
				e := StringtableKey{ID: key.ID, Container: cont.Name, Values: map[string]string{}}
				for _, v := range key.Values {
					e.Values[v.XMLName.Local] = v.Value
				}
				st.Entries = append(st.Entries, e)
			}
		}
	}
	return st, nil
}

// Sort orders st.Entries by ID (ascending, case-sensitive), the
// deterministic order the rapifier consumes so repeated builds produce
// byte-identical output.
func (st *Stringtable) Sort() {
	sort.SliceStable(st.Entries, func(i, j int) bool { return st.Entries[i].ID < st.Entries[j].ID })
}

// RapifyStringtable packs st into the Config/Rapify pipeline already
// built for §4.D/§4.E: each entry becomes a nested class under a
// root-level class named after its container, with one string entry per
// language in Languages order — reusing the rapifier wholesale rather
// than inventing a parallel binary format, since a rapified stringtable
// is just a config file by another name.
func RapifyStringtable(st *Stringtable) ([]byte, error) {
	st.Sort()

	byContainer := map[string][]StringtableKey{}
	var containerOrder []string
	for _, e := range st.Entries {
		if _, ok := byContainer[e.Container]; !ok {
			containerOrder = append(containerOrder, e.Container)
		}
		byContainer[e.Container] = append(byContainer[e.Container], e)
	}
	sort.Strings(containerOrder)

	var root Config
	for _, cname := range containerOrder {
		container := &Class{Kind: ClassLocal, Name: cname}
		for _, e := range byContainer[cname] {
			key := &Class{Kind: ClassLocal, Name: e.ID}
			for _, lang := range sortedLanguages(e.Values) {
				key.Props = append(key.Props, Property{
					Kind:  PropEntry,
					Entry: &Entry{Name: lang, Value: Value{Kind: ValueStr, Str: e.Values[lang]}},
				})
			}
			container.Props = append(container.Props, Property{Kind: PropClass, Class: key})
		}
		root.Properties = append(root.Properties, Property{Kind: PropClass, Class: container})
	}

	return Rapify(&root)
}
