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

// Package testutil wraps diffmatchpatch for golden-style test failures,
// the same shape run_test.go uses to report a readable diff between
// expected and actual output rather than two opaque blobs.
package testutil

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// AssertEqual fails t with a human-readable diff of want vs got when they
// differ, instead of printing both strings in full.
func AssertEqual(t *testing.T, want, got, what string) {
	t.Helper()
	if want == got {
		return
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, got, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	t.Errorf("%s mismatch (red=want, green=got):\n%s", what, dmp.DiffPrettyText(diffs))
}
