package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const maxEntries = 500

// Journal files kept in the data directory
const (
	ActionsFile = "actions.txt" // commands sent on behalf of users
	StatsFile   = "stats.txt"   // bot commands received
)

// Journal is a capped list of log lines backed by a file in the data
// directory. The file and the list both keep the newest entry last.
type Journal struct {
	mu      sync.Mutex
	path    string
	entries []string
}

// OpenJournal loads dataDir/name, or starts empty if it doesn't exist yet
func OpenJournal(dataDir, name string) (*Journal, error) {
	j := &Journal{path: filepath.Join(dataDir, name)}
	lines, err := readLines(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	j.entries = trim(lines)
	return j, nil
}

// Add appends entry and rewrites the file
func (j *Journal) Add(entry string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = AddEntry(j.entries, entry)
	if err := writeLines(j.path, j.entries); err != nil {
		return errors.Wrapf(err, "failed to write %s", filepath.Base(j.path))
	}
	return nil
}

// Last returns up to n entries, newest first
func (j *Journal) Last(n int) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for i := len(j.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.entries[i])
	}
	return out
}

// Search returns the entries containing term, case-insensitively, newest first
func (j *Journal) Search(term string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	term = strings.ToLower(term)
	var out []string
	for i := len(j.entries) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(j.entries[i]), term) {
			out = append(out, j.entries[i])
		}
	}
	return out
}

// Len returns the number of entries
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// AddEntry appends a new entry, dropping the oldest past the cap
func AddEntry(entries []string, entry string) []string {
	entries = append(entries, entry)
	return trim(entries)
}

func trim(entries []string) []string {
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	return entries
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

func writeLines(path string, lines []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, line := range lines {
		if _, err := fmt.Fprintln(file, line); err != nil {
			return err
		}
	}
	return nil
}
