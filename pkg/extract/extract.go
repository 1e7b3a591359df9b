// Package extract turns glossary pages and plain text into lookup candidates.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

// maxBodySize caps HTML fetched from untrusted URLs.
const maxBodySize = 10 * 1024 * 1024

var (
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses
// (<rp>...</rp>). Glossary pages annotate characters with pinyin this way and
// readability would otherwise glue the reading onto the term ("高血压gāoxuèyā").
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, nil)
	return reRP.ReplaceAll(cleaned, nil)
}

// Page is the readable part of an HTML document.
type Page struct {
	Title string
	Text  string
}

// FromHTML extracts the main text of an HTML page with ruby annotations removed.
// pageURL may be nil.
func FromHTML(r io.Reader, pageURL *url.URL) (Page, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return Page{}, fmt.Errorf("read html: %w", err)
	}
	if len(body) > maxBodySize {
		return Page{}, fmt.Errorf("html exceeds maximum size of %d bytes", maxBodySize)
	}
	if pageURL == nil {
		pageURL = &url.URL{Scheme: "http", Host: "localhost"}
	}
	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(body)), pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("extract article: %w", err)
	}
	return Page{Title: article.Title, Text: article.TextContent}, nil
}

// Fetch downloads rawURL and extracts it with FromHTML.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("parse url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; termlookup)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return Page{}, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}
	return FromHTML(resp.Body, pageURL)
}

// maxCandidateRunes drops fragments that are sentences rather than terms.
const maxCandidateRunes = 64

func isDelimiter(r rune) bool {
	switch r {
	case '。', '！', '？', '；', '，', '、', '：', '\n', '\r',
		',', '.', ';', '!', '?', ':', '\t':
		return true
	}
	return false
}

// SplitCandidates splits text on Chinese and ASCII punctuation and returns the
// trimmed, distinct fragments in first-seen order.
func SplitCandidates(text string) []string {
	fields := strings.FieldsFunc(text, isDelimiter)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || utf8.RuneCountInString(f) > maxCandidateRunes {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Lines returns the non-blank trimmed lines of r, one query per line, as a
// batch input file is written.
func Lines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
