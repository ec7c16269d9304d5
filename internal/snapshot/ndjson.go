package snapshot

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// writeNDJSONFile writes one JSON-encoded value per line, newline-terminated,
// and returns the hex SHA-256 digest of the bytes written (every line plus
// its trailing newline, nothing else) and the number of values written.
func writeNDJSONFile[T any](path string, values []T) (digest string, count int, err error) {
	file, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create export file %s: %w", path, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	hasher := sha256.New()

	for _, value := range values {
		line, err := json.Marshal(value)
		if err != nil {
			return "", 0, fmt.Errorf("failed to serialize NDJSON row: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return "", 0, fmt.Errorf("failed to write export file %s: %w", path, err)
		}
		if _, err := writer.WriteString("\n"); err != nil {
			return "", 0, fmt.Errorf("failed to write export file %s: %w", path, err)
		}
		hasher.Write(line)
		hasher.Write([]byte("\n"))
	}

	if err := writer.Flush(); err != nil {
		return "", 0, fmt.Errorf("failed to flush export file %s: %w", path, err)
	}
	if err := file.Chmod(0o600); err != nil {
		return "", 0, fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), len(values), nil
}

// readNDJSONFile parses one JSON value per non-blank line.
func readNDJSONFile[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open NDJSON file %s: %w", path, err)
	}
	defer file.Close()

	var values []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" {
			continue
		}
		var value T
		if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
			return nil, fmt.Errorf("failed to parse NDJSON row %d from %s: %w", lineNo, path, err)
		}
		values = append(values, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return values, nil
}

// ndjsonDigestAndRecords re-derives the digest and non-blank line count of an
// on-disk NDJSON file, for comparing against a manifest entry during import.
func ndjsonDigestAndRecords(path string) (digest string, count int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open NDJSON file %s: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		hasher.Write([]byte(line))
		hasher.Write([]byte("\n"))
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), count, nil
}
