// Command depscheck enforces the wire-layer boundary: only the sync client,
// its siblings under internal/net, and cmd/protoschema may import the proto
// catalog, and no leaf package may reach into internal/ at all.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type packageInfo struct {
	ImportPath string
	Imports    []string
}

const (
	modulePath   = "stardrift/client"
	internalPath = modulePath + "/internal"
	protoPath    = modulePath + "/internal/net/proto"
)

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}

		for _, imp := range pkg.Imports {
			if forbidden(pkg.ImportPath, imp) {
				violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
			}
		}
	}

	if len(violations) > 0 {
		sort.Strings(violations)
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func forbidden(importer, imported string) bool {
	if !strings.HasPrefix(imported, internalPath) {
		return false
	}
	if strings.HasPrefix(importer, internalPath) || strings.HasPrefix(importer, modulePath+"/cmd/") {
		// Wiring and binaries may cross the boundary, but the proto
		// catalog stays behind internal/net and its schema generator.
		if strings.HasPrefix(imported, protoPath) {
			return strings.HasPrefix(importer, modulePath+"/cmd/") &&
				importer != modulePath+"/cmd/protoschema"
		}
		return false
	}
	return true
}
