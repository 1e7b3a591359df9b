package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/termlookup/pkg/batch"
	"github.com/japaniel/termlookup/pkg/term"
)

const systemDictionary = `[
  {"chinese_term": "高血压", "english_term": "hypertension", "pinyin_full": "gaoxueya", "pinyin_first": "gxy",
   "category": "心血管", "mistranslation": ["high blood"]},
  {"chinese_term": "糖尿病", "english_term": "diabetes mellitus", "pinyin_full": "tangniaobing", "pinyin_first": "tnb"},
  {"chinese_term": "CT", "english_term": "computed tomography"}
]`

type env struct {
	dir    string
	dbPath string
	dict   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{dir: dir, dbPath: filepath.Join(dir, "termlookup.db"), dict: filepath.Join(dir, "system_terms.json")}
	require.NoError(t, os.WriteFile(e.dict, []byte(systemDictionary), 0o644))
	return e
}

// run executes the CLI with the env's database and dictionary and returns stdout.
func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(append([]string{"--db", e.dbPath, "--dict", e.dict, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "termlookup %s", strings.Join(args, " "))
	return out
}

func TestLookupStages(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun(t, "lookup", "高血压")
	assert.Contains(t, out, "[exact-system] 高血压  hypertension")
	assert.Contains(t, out, "avoid: high blood")

	out = e.mustRun(t, "lookup", "gxy")
	assert.Contains(t, out, "[pinyin-initial] 高血压")

	out = e.mustRun(t, "lookup", "tangniao")
	assert.Contains(t, out, "[pinyin-full] 糖尿病")

	out = e.mustRun(t, "lookup", "Diabetes", "Mellitus")
	assert.Contains(t, out, "[exact-system] 糖尿病")

	out = e.mustRun(t, "lookup", "--threshold", "0", "qqqqqqq")
	assert.Contains(t, out, "No match")
}

func TestLookupJSONAndHistory(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun(t, "lookup", "--json", "高血")
	var results []term.MatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.NotEmpty(t, results)
	assert.Equal(t, term.MatchFuzzy, results[0].MatchType)
	assert.Equal(t, "sys_0", results[0].ID)
	require.NotNil(t, results[0].Score)

	e.mustRun(t, "lookup", "--no-history", "tnb")
	e.mustRun(t, "lookup", "gxy")

	out = e.mustRun(t, "history")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "gxy\t高血压\tpinyin-initial")
	assert.Contains(t, lines[1], "高血\t高血压\tfuzzy")

	e.mustRun(t, "history", "clear")
	out = e.mustRun(t, "history")
	assert.Empty(t, strings.TrimSpace(out))
}

func TestUserTermsTakePrecedence(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun(t, "term", "add", "--zh", "高血压", "--en", "HTN (house style)", "--warn", "do not write HBP")
	assert.Contains(t, out, "Added usr_")

	out = e.mustRun(t, "lookup", "高血压")
	assert.Contains(t, out, "[exact-user] 高血压  HTN (house style)  (gaoxueya)")
	assert.NotContains(t, out, "exact-system")

	out = e.mustRun(t, "lookup", "gxy")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var ids []string
	for _, l := range lines {
		if strings.HasPrefix(l, "[") {
			ids = append(ids, l[strings.LastIndex(l, "<")+1:len(l)-1])
		}
	}
	require.Len(t, ids, 2)
	assert.True(t, strings.HasPrefix(ids[0], "usr_"), "user term first, got %v", ids)
	assert.Equal(t, "sys_0", ids[1])
}

func TestTermLifecycle(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "term", "add", "--zh", "发热", "--en", "  ")
	require.Error(t, err)

	e.mustRun(t, "term", "add", "--zh", "发热", "--en", "fever", "--category", "症状")
	out := e.mustRun(t, "term", "list", "--json")
	var terms []term.Record
	require.NoError(t, json.Unmarshal([]byte(out), &terms))
	require.Len(t, terms, 1)
	id := terms[0].ID
	assert.Equal(t, term.Some("fare"), terms[0].PinyinFull)
	assert.Equal(t, term.Some("fr"), terms[0].PinyinFirst)

	e.mustRun(t, "term", "edit", id, "--en", "pyrexia")
	out = e.mustRun(t, "term", "list")
	assert.Contains(t, out, id+"\t发热\tpyrexia\tfare")

	e.mustRun(t, "fav", "toggle", id)
	e.mustRun(t, "fav", "toggle", "sys_1")
	out = e.mustRun(t, "fav", "list")
	assert.Equal(t, id+"\t发热\tpyrexia\nsys_1\t糖尿病\tdiabetes mellitus\n", out)

	e.mustRun(t, "term", "rm", id)
	out = e.mustRun(t, "fav", "list")
	assert.Equal(t, "sys_1\t糖尿病\tdiabetes mellitus\n", out)

	_, err = e.run(t, "term", "rm", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTermExportImport(t *testing.T) {
	src := newEnv(t)
	src.mustRun(t, "term", "add", "--zh", "咳嗽", "--en", "cough", "--note", "常见症状")
	src.mustRun(t, "term", "add", "--zh", "头痛", "--en", "headache", "--pinyin", "toutong", "--initials", "tt")

	exported := filepath.Join(src.dir, "export.json")
	src.mustRun(t, "term", "export", "--out", exported)

	dst := newEnv(t)
	out := dst.mustRun(t, "term", "import", exported)
	assert.Contains(t, out, "Imported 2 terms.")

	out = dst.mustRun(t, "term", "list", "--json")
	var terms []term.Record
	require.NoError(t, json.Unmarshal([]byte(out), &terms))
	require.Len(t, terms, 2)
	assert.Equal(t, "咳嗽", terms[0].ChineseTerm)
	assert.Equal(t, "常见症状", terms[0].Note)
	assert.Equal(t, term.Some("tt"), terms[1].PinyinFirst)
}

func TestSettingsThreshold(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun(t, "settings")
	assert.Contains(t, out, "fuzzy_threshold\t0.3")

	out = e.mustRun(t, "settings", "threshold", "0.94")
	assert.Contains(t, out, "set to 0.6")
	out = e.mustRun(t, "settings")
	assert.Contains(t, out, "fuzzy_threshold\t0.6")

	_, err := e.run(t, "settings", "threshold", "lots")
	require.Error(t, err)
}

func TestBatchFromFile(t *testing.T) {
	e := newEnv(t)
	input := filepath.Join(e.dir, "queries.txt")
	require.NoError(t, os.WriteFile(input, []byte("gxy\n糖尿病\n\nqqqqqqq\n"), 0o644))

	out := e.mustRun(t, "batch", "--threshold", "0", "--json", "--file", input)
	var results []batch.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.Equal(t, "gxy", results[0].Query)
	assert.Equal(t, "sys_0", results[0].Matches[0].ID)
	assert.Equal(t, term.MatchExactSystem, results[1].Matches[0].MatchType)
	assert.Empty(t, results[2].Matches)

	out = e.mustRun(t, "history", "--limit", "0")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	_, err := e.run(t, "batch")
	require.Error(t, err)
}

func TestBatchFromURL(t *testing.T) {
	e := newEnv(t)
	page := `<html><head><title>术语</title></head><body><article>` +
		strings.Repeat(`<p><ruby>高血压<rt>gāoxuèyā</rt></ruby>，<ruby>糖尿病<rt>tángniàobìng</rt></ruby>。这些是临床上最常见的慢性疾病，需要长期随访和规范化管理，翻译时务必使用标准术语。</p>`, 12) +
		`</article></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	out := e.mustRun(t, "batch", "--threshold", "0", "--url", srv.URL)
	assert.Contains(t, out, "高血压\t高血压\thypertension\texact-system")
	assert.Contains(t, out, "糖尿病\t糖尿病\tdiabetes mellitus\texact-system")
	assert.NotContains(t, out, "gāoxuèyā")
}

func TestMissingDictionaryDegrades(t *testing.T) {
	e := newEnv(t)
	e.dict = filepath.Join(e.dir, "absent.json")

	out := e.mustRun(t, "lookup", "高血压")
	assert.Contains(t, out, "No match")

	e.mustRun(t, "term", "add", "--zh", "高血压", "--en", "hypertension")
	out = e.mustRun(t, "lookup", "gxy")
	assert.Contains(t, out, "[pinyin-initial] 高血压")
}

func TestDictFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"terms": [{"chinese_term": "哮喘", "english_term": "asthma"}]}`))
	}))
	defer srv.Close()

	e := newEnv(t)
	e.dict = filepath.Join(e.dir, "fetched.json")

	out := e.mustRun(t, "dict", "fetch", "--url", srv.URL)
	assert.Contains(t, out, "has 1 terms")

	out = e.mustRun(t, "lookup", "asthma")
	assert.Contains(t, out, "[exact-system] 哮喘  asthma")

	// An existing file is kept unless --force is given.
	require.NoError(t, os.WriteFile(e.dict, []byte(systemDictionary), 0o644))
	out = e.mustRun(t, "dict", "fetch", "--url", srv.URL)
	assert.Contains(t, out, "has 3 terms")
	out = e.mustRun(t, "dict", "fetch", "--url", srv.URL, "--force")
	assert.Contains(t, out, "has 1 terms")
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t)
	t.Setenv("TERMLOOKUP_SEARCH_ALGORITHM", "soundex")
	_, err := e.run(t, "lookup", "gxy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search.algorithm")
}
