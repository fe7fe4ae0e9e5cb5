package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/querydesk/querydesk-cli/internal/client"
)

// tableNames caches the backend's table list for completion. Uploads
// invalidate it; \tables refreshes it.
var tableNames struct {
	sync.RWMutex
	names   []string
	fetched time.Time
}

const tableNamesTTL = 5 * time.Minute

func isCacheValid() bool {
	tableNames.RLock()
	defer tableNames.RUnlock()
	return !tableNames.fetched.IsZero() && time.Since(tableNames.fetched) < tableNamesTTL
}

func setCachedTables(tables []string) {
	tableNames.Lock()
	defer tableNames.Unlock()
	tableNames.names = append([]string(nil), tables...)
	tableNames.fetched = time.Now()
}

func getCachedTables() []string {
	tableNames.RLock()
	defer tableNames.RUnlock()
	return tableNames.names
}

func invalidateCache() {
	tableNames.Lock()
	defer tableNames.Unlock()
	tableNames.names = nil
	tableNames.fetched = time.Time{}
}

// refreshTables waits at most two seconds for the backend.
func refreshTables(c *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Tables(ctx)
	if err != nil || resp == nil {
		return
	}
	setCachedTables(resp.Tables)
}

func filterCompletions(candidates []string, prefix string) []string {
	if prefix == "" {
		return candidates
	}

	var matches []string
	lowerPrefix := strings.ToLower(prefix)
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), lowerPrefix) {
			matches = append(matches, c)
		}
	}
	return matches
}

func makeLineCompletions(line string, lastWord string, candidates []string, appendSpace bool) []string {
	if len(candidates) == 0 {
		return nil
	}

	trimmedRight := strings.TrimRight(line, " \t")
	if lastWord == "" {
		prefix := line
		out := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if appendSpace {
				out = append(out, prefix+c+" ")
			} else {
				out = append(out, prefix+c)
			}
		}
		return out
	}

	idx := strings.LastIndex(trimmedRight, lastWord)
	if idx < 0 {
		start := len(trimmedRight) - len(lastWord)
		if start < 0 || start > len(trimmedRight) {
			return candidates
		}
		idx = start
	}
	prefix := trimmedRight[:idx]

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if appendSpace {
			out = append(out, prefix+c+" ")
		} else {
			out = append(out, prefix+c)
		}
	}
	return out
}

// metaCommandNames lists every backslash command in the registry.
func metaCommandNames() []string {
	var names []string
	for _, c := range replRegistry() {
		names = append(names, c.Names...)
	}
	return names
}

func makeCompleter(c *client.Client) func(string) []string {
	return func(line string) []string {
		if line == "" {
			return append([]string{"help", "exit"}, metaCommandNames()...)
		}

		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" {
			return nil
		}

		// If the user has just typed a space, treat it as starting a new token
		// (lastWord="") so we don't replace the previous token.
		words := strings.Fields(trimmedLine)
		hasTrailingSpace := strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t")
		lastWord := words[len(words)-1]
		cmdWord := strings.ToLower(words[0])
		argIndex := len(words) - 1
		if hasTrailingSpace {
			lastWord = ""
			argIndex = len(words)
		}

		switch {
		case argIndex == 0 && strings.HasPrefix(lastWord, "\\"):
			return makeLineCompletions(line, lastWord, filterCompletions(metaCommandNames(), lastWord), true)

		case argIndex == 1 && (cmdWord == "\\upload" || cmdWord == "\\i"):
			return makeLineCompletions(line, lastWord, completeFilePath(lastWord), false)

		case argIndex == 1 && (cmdWord == "\\cols" || cmdWord == "\\d" || cmdWord == "\\preview"):
			return makeLineCompletions(line, lastWord, completeTableNames(c, lastWord), true)

		case argIndex == 1 && cmdWord == "\\set":
			return makeLineCompletions(line, lastWord, filterCompletions([]string{"output", "width", "wide"}, lastWord), true)

		case argIndex == 2 && cmdWord == "\\set" && strings.EqualFold(words[1], "output"):
			return makeLineCompletions(line, lastWord, filterCompletions([]string{outputTable, outputJSON}, lastWord), false)
		}
		return nil
	}
}

func completeTableNames(c *client.Client, prefix string) []string {
	if !isCacheValid() && c != nil {
		refreshTables(c)
	}
	return filterCompletions(getCachedTables(), prefix)
}

func completeFilePath(prefix string) []string {
	dir, filePrefix := filepath.Split(prefix)
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, filePrefix) {
			fullPath := filepath.Join(dir, name)
			if entry.IsDir() {
				fullPath += string(filepath.Separator)
			}
			matches = append(matches, fullPath)
		}
	}
	return matches
}
