//go:build ignore

// Package main generates a synthetic document corpus and matching eval set
// for benchmarking and manual testing.
//
// Usage: go run scripts/generate-test-corpus.go -docs 1000 -output testdata/bench
//
// Writes <output>/docs.json (for `amanrag build --docs`) and
// <output>/eval.jsonl (for `amanrag eval --cases`). Every eval case targets
// one generated document by a phrase that only that document contains.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numDocs   = flag.Int("docs", 1000, "Number of documents to generate")
	numCases  = flag.Int("cases", 50, "Number of eval cases to generate")
	words     = flag.Int("words", 400, "Approximate words per document")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

type document struct {
	ID        string `json:"doc_id"`
	Title     string `json:"title"`
	Domain    string `json:"domain"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	UpdatedAt string `json:"updated_at"`
}

type evalCase struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	GoldPhrase  string   `json:"gold_phrase"`
	GoldSources []string `json:"gold_sources"`
}

// Word pools for generating policy-style prose
var (
	domains = []string{
		"Billing", "Logistics", "Support", "Legal", "Security",
		"Onboarding", "Procurement", "Facilities", "Finance", "Engineering",
	}
	subjects = []string{
		"refund", "invoice", "shipment", "warranty", "account",
		"password", "contract", "badge", "expense", "deployment",
		"license", "subscription", "escalation", "audit", "backup",
	}
	verbs = []string{
		"must be approved", "is reviewed", "can be requested", "is processed",
		"is archived", "must be signed", "is escalated", "is renewed",
	}
	qualifiers = []string{
		"within five business days", "by the regional manager", "before the end of the quarter",
		"through the self-service portal", "after written confirmation", "at no additional cost",
		"only for enterprise customers", "when the ticket is closed",
	}
	fillers = []string{
		"Employees should consult the handbook for related procedures.",
		"Exceptions require documented justification.",
		"Questions may be directed to the responsible team.",
		"This policy is reviewed annually.",
		"Records are retained for seven years.",
		"Customers are notified by email once the request is complete.",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d documents and %d eval cases in %s...\n", *numDocs, *numCases, *outputDir)

	docs := make([]document, *numDocs)
	markers := make([]string, *numDocs)
	for i := range docs {
		docs[i], markers[i] = generateDocument(rng, i)
	}

	if err := writeJSON(filepath.Join(*outputDir, "docs.json"), docs); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing documents: %v\n", err)
		os.Exit(1)
	}

	cases := make([]evalCase, 0, *numCases)
	for i := 0; i < *numCases && i < len(docs); i++ {
		target := rng.Intn(len(docs))
		cases = append(cases, evalCase{
			ID:          fmt.Sprintf("case-%04d", i),
			Question:    fmt.Sprintf("what does the %s policy say about %s", strings.ToLower(docs[target].Domain), markers[target]),
			GoldPhrase:  markers[target],
			GoldSources: []string{docs[target].Source},
		})
	}

	if err := writeJSONL(filepath.Join(*outputDir, "eval.jsonl"), cases); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing eval cases: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d documents and %d eval cases successfully.\n", len(docs), len(cases))
}

func randomWord(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

// generateDocument returns a document and its unique marker phrase.
func generateDocument(rng *rand.Rand, index int) (document, string) {
	domain := randomWord(rng, domains)
	subject := randomWord(rng, subjects)
	marker := fmt.Sprintf("%s code %s%d", subject, strings.ToLower(domain[:3]), index)

	var b strings.Builder
	fmt.Fprintf(&b, "Every %s %s %s. ", marker, randomWord(rng, verbs), randomWord(rng, qualifiers))
	for n := 0; n < *words; {
		var sentence string
		if rng.Intn(3) == 0 {
			sentence = randomWord(rng, fillers)
		} else {
			sentence = fmt.Sprintf("A %s %s %s.", randomWord(rng, subjects), randomWord(rng, verbs), randomWord(rng, qualifiers))
		}
		b.WriteString(sentence)
		b.WriteByte(' ')
		n += len(strings.Fields(sentence))
	}

	doc := document{
		ID:        fmt.Sprintf("%s-%s-%d", strings.ToLower(domain), subject, index),
		Title:     fmt.Sprintf("%s %s policy", domain, subject),
		Domain:    domain,
		Text:      strings.TrimSpace(b.String()),
		Source:    fmt.Sprintf("policies/%s/%s_%d.md", strings.ToLower(domain), subject, index),
		UpdatedAt: fmt.Sprintf("2025-%02d-%02d", rng.Intn(12)+1, rng.Intn(28)+1),
	}
	return doc, marker
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSONL(path string, cases []evalCase) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for _, c := range cases {
		if err := enc.Encode(c); err != nil {
			return err
		}
	}
	return nil
}
