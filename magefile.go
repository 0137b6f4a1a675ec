//go:build mage

// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pvforecast"
	modulePath = "github.com/penny-vault/pv-forecast"
)

var ldflags = "-X " + modulePath + "/common.commitHash=$COMMIT_HASH -X " + modulePath + "/common.buildDate=$BUILD_DATE"

// GOEXE overrides the go executable
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

var Default = Build

// Build the pvforecast binary stamped with the git revision and build date
func Build() error {
	fmt.Println("Building...")
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	env := map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
	return sh.RunWith(env, goexe, "build", "-o", binaryName, "-ldflags", ldflags, ".")
}

// Test runs the ginkgo suites with the race detector
func Test() error {
	fmt.Println("Go Test")
	if mg.Verbose() {
		return sh.Run(goexe, "test", "-race", "./...")
	}
	out, err := sh.Output(goexe, "test", "-race", "./...")
	if err != nil {
		fmt.Fprintln(os.Stderr, out)
	}
	return err
}

// Check runs gofmt and go vet before the tests
func Check() {
	mg.Deps(Fmt, Vet)
	mg.Deps(Test)
}

// Fmt fails when any file is not gofmt'ed
func Fmt() error {
	fmt.Println("Go Format")
	dirs, err := sh.Output(goexe, "list", "-f", "{{.Dir}}", "./...")
	if err != nil {
		return err
	}

	// gofmt exits zero on unformatted code; its file list is the failure signal
	out, err := sh.Output("gofmt", append([]string{"-l"}, strings.Fields(dirs)...)...)
	if err != nil {
		return err
	}
	if files := strings.TrimSpace(out); files != "" {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(files)
		return errors.New("improperly formatted go files")
	}
	return nil
}

func Vet() error {
	fmt.Println("Go Vet")
	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %w", err)
	}
	return nil
}

func Clean() error {
	fmt.Println("Cleaning...")
	return sh.Rm(binaryName)
}
