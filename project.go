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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProjectConfig is the decoded project.toml file (spec §6). Field names
// only need to be exported for the TOML decoder to produce useful
// per-field error messages, in the same spirit as holo-build's
// PackageDefinition.
type ProjectConfig struct {
	Name        string
	Prefix      string
	Author      string
	MainPrefix  string
	Version     VersionSection
	Files       FilesSection
	Signing     SigningSection
	Lints       map[string]map[string]LintOverride
	Hemtt       HemttSection
}

// VersionSection is either the numeric major/minor/patch/build form or a
// Path pointing at a header file containing `#define MAJOR n` etc.;
// mutually exclusive, enforced by Validate.
type VersionSection struct {
	Major   uint32
	Minor   uint32
	Patch   uint32
	Build   uint32
	Path    string
	GitHash uint8 `toml:"git_hash"`
}

// FilesSection lists glob patterns controlling which files an addon
// build includes.
type FilesSection struct {
	Include []string
	Exclude []string
}

// SigningSection configures release signing.
type SigningSection struct {
	Authority       string
	Version         string // "V2" | "V3"
	PrivateKeyHash  string `toml:"private_key_hash"` // hex SHA-1 of the private key blob
}

// LintOverride is one `lints.<category>.<ident>` table entry.
type LintOverride struct {
	Enabled  bool
	Severity string
	Options  map[string]string
}

// HemttSection holds the `hemtt.launch.<name>` passthrough tables; their
// contents are opaque to the core toolchain and forwarded verbatim to an
// external launcher.
type HemttSection struct {
	Launch map[string]map[string]interface{}
}

// DecodeProjectConfig parses r as TOML into a ProjectConfig.
func DecodeProjectConfig(r io.Reader) (*ProjectConfig, error) {
	var pc ProjectConfig
	if _, err := toml.DecodeReader(r, &pc); err != nil {
		return nil, fmt.Errorf("hemtt: decoding project config: %w", err)
	}
	return &pc, nil
}

// ErrorCollector accumulates validation errors without aborting on the
// first one, so Validate can report every problem in a project file at
// once rather than forcing a fix-one-rerun loop.
type ErrorCollector struct {
	Errors []error
}

// Add appends err if non-nil.
func (c *ErrorCollector) Add(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

// Addf appends a formatted error.
func (c *ErrorCollector) Addf(format string, args ...interface{}) {
	if len(args) > 0 {
		c.Errors = append(c.Errors, fmt.Errorf(format, args...))
	} else {
		c.Errors = append(c.Errors, errors.New(format))
	}
}

// HasErrors reports whether anything was collected.
func (c *ErrorCollector) HasErrors() bool { return len(c.Errors) > 0 }

// Validate checks pc's invariants, collecting every violation rather than
// stopping at the first.
func (pc *ProjectConfig) Validate() *ErrorCollector {
	ec := &ErrorCollector{}

	if pc.Name == "" {
		ec.Addf("project.name must not be empty")
	}
	if pc.Prefix == "" {
		ec.Addf("project.prefix must not be empty")
	} else {
		if pc.Prefix != strings.ToLower(pc.Prefix) {
			ec.Addf("project.prefix %q must be lowercase", pc.Prefix)
		}
		if strings.ContainsAny(pc.Prefix, "/\\") {
			ec.Addf("project.prefix %q must not contain slashes", pc.Prefix)
		}
	}

	numericVersion := pc.Version.Major != 0 || pc.Version.Minor != 0 || pc.Version.Patch != 0 || pc.Version.Build != 0
	pathVersion := pc.Version.Path != ""
	if numericVersion && pathVersion {
		ec.Addf("version.major/minor/patch/build and version.path are mutually exclusive")
	}

	switch strings.ToUpper(pc.Signing.Version) {
	case "", "V2", "V3":
	default:
		ec.Addf("signing.version must be V2 or V3, got %q", pc.Signing.Version)
	}
	if pc.Signing.PrivateKeyHash != "" && len(pc.Signing.PrivateKeyHash) != 40 {
		ec.Addf("signing.private_key_hash must be a 40-char hex SHA-1, got %d chars", len(pc.Signing.PrivateKeyHash))
	}

	for category, idents := range pc.Lints {
		for ident, override := range idents {
			switch strings.ToLower(override.Severity) {
			case "", "help", "note", "warning", "error", "fatal":
			default:
				ec.Addf("lints.%s.%s.severity: unrecognized severity %q", category, ident, override.Severity)
			}
		}
	}

	return ec
}

// ResolvedVersion computes the effective numeric version, following
// Version.Path via resolveVersionPath when the numeric fields are unset.
func (pc *ProjectConfig) ResolvedVersion(readFile func(string) ([]byte, error)) (major, minor, patch, build uint32, err error) {
	if pc.Version.Path == "" {
		return pc.Version.Major, pc.Version.Minor, pc.Version.Patch, pc.Version.Build, nil
	}
	content, err := readFile(pc.Version.Path)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("hemtt: reading version.path %q: %w", pc.Version.Path, err)
	}
	return parseVersionDefines(string(content))
}

// parseVersionDefines extracts MAJOR/MINOR/PATCH/BUILD #define values
// from a header-style version file, the format version.path points at.
func parseVersionDefines(content string) (major, minor, patch, build uint32, err error) {
	want := map[string]*uint32{"MAJOR": &major, "MINOR": &minor, "PATCH": &patch, "BUILD": &build}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#define") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		if dst, ok := want[fields[1]]; ok {
			var v uint32
			if _, serr := fmt.Sscanf(fields[2], "%d", &v); serr == nil {
				*dst = v
			}
		}
	}
	return major, minor, patch, build, nil
}
