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

// Command hemtt drives a project build: it decodes project.toml, runs
// the fixed phase pipeline, and prints any collected diagnostics. The
// richer CLI surface (flags per subcommand, launcher integration) is out
// of scope for this core toolchain package; this binary exists so the
// module has a runnable entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	hemtt "github.com/hemtt-core/hemtt"
)

func main() {
	flag.Parse()
	defer glog.Flush()

	projectPath := "project.toml"
	if flag.NArg() > 0 {
		projectPath = flag.Arg(0)
	}

	f, err := os.Open(projectPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hemtt: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	project, err := hemtt.DecodeProjectConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hemtt: %v\n", err)
		os.Exit(1)
	}

	if ec := project.Validate(); ec.HasErrors() {
		for _, e := range ec.Errors {
			fmt.Fprintf(os.Stderr, "hemtt: %v\n", e)
		}
		os.Exit(1)
	}

	executor := hemtt.NewExecutor()
	codes := executor.Run(context.Background(), project, nil)
	hemtt.SortByPath(codes)
	hemtt.Render(os.Stderr, codes)

	for _, c := range codes {
		if c.Severity() >= hemtt.SeverityError {
			os.Exit(1)
		}
	}
}
