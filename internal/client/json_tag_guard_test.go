package client

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

// The backend speaks snake_case except for the agent result fields below.
var allowedCamelCaseTags = map[string]bool{
	"dbType": true,
	"dbHost": true,
}

func TestClientDtoJsonTagsAreSnakeCase(t *testing.T) {
	t.Helper()

	camelCaseJsonTag := regexp.MustCompile("json:\\\"([^\\\",]*[A-Z][^\\\",]*)[\\\",]")

	root := "."
	entries := 0

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		if filepath.Base(path) == "json_tag_guard_test.go" {
			return nil
		}

		entries++
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		for _, m := range camelCaseJsonTag.FindAllSubmatch(b, -1) {
			name := string(m[1])
			if !allowedCamelCaseTags[name] {
				t.Errorf("camelCase json tag %q found in %s", name, path)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to scan internal/client: %v", err)
	}
	if entries == 0 {
		t.Fatalf("guardrail scan found no Go files under internal/client")
	}
}
