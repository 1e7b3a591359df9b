package dictionary

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	userAgent = "termlookup-cli"
	// maxDictionarySize caps downloads of untrusted dictionary files.
	maxDictionarySize = 64 * 1024 * 1024
)

// EnsureDictionary checks if the dictionary exists at path.
// If not, it downloads it from url (gzip-compressed when url ends in .gz), checks
// that it parses, and writes it to path.
func EnsureDictionary(ctx context.Context, url, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if url == "" {
		return fmt.Errorf("dictionary not found at %s and no download url configured", path)
	}
	return Download(ctx, HTTPSource{URL: url}, strings.HasSuffix(url, ".gz"), path)
}

// Download fetches the dictionary from src and writes it to destPath, replacing
// any existing file only after the new content has been validated.
func Download(ctx context.Context, src Source, gzipped bool, destPath string) error {
	rc, err := src.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	var r io.Reader = rc
	if gzipped {
		gzReader, err := gzip.NewReader(rc)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzReader.Close()
		r = gzReader
	}

	data, err := io.ReadAll(io.LimitReader(r, maxDictionarySize+1))
	if err != nil {
		return fmt.Errorf("failed to read dictionary: %w", err)
	}
	if len(data) > maxDictionarySize {
		return fmt.Errorf("dictionary exceeds maximum size of %d bytes", maxDictionarySize)
	}
	if _, err := ParseEntries(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("downloaded dictionary is invalid: %w", err)
	}

	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".dictionary-*.json")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, destPath)
}
