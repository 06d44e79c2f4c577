package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// printJSON writes v to stdout as indented JSON. Stdout carries nothing
// else, so orchestrators can parse the command output directly.
func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(out))
}

// splitModelPath maps a CLI model path onto a store directory and an
// artifact name. Any extension is dropped; the store appends its own.
func splitModelPath(path string) (dir, name string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	return dir, strings.TrimSuffix(base, filepath.Ext(base))
}
