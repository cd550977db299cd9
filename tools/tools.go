//go:build tools

// Package tools pins the development commands of tget.
//
//	go install golang.org/x/tools/cmd/stringer   // State and Message String methods, via go generate ./...
//	go install gotest.tools/gotestsum            // test runner
//	go install github.com/dkorunic/betteralign/cmd/betteralign
//	go install golang.org/x/vuln/cmd/govulncheck
package tools

import (
	_ "github.com/dkorunic/betteralign/cmd/betteralign"
	_ "golang.org/x/tools/cmd/stringer"
	_ "golang.org/x/vuln/cmd/govulncheck"
	_ "gotest.tools/gotestsum"
)
