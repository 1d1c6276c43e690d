// report_gen turns `go test -json` output into JSON and Markdown reports,
// joining each test with the TestPurpose annotation block above its
// declaration. Tests are grouped by the prefix of their Test Case ID
// (ROL = role registry, ASN = assignment, AZD = decision engine,
// SED = seeding, API = HTTP surface, ISO/ORG/FLW = integration, E2E = e2e).
//
// Usage:
//
//	go test -json ./... > /tmp/results.json
//	go run scripts/testing/report_gen.go -input /tmp/results.json -out report
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var groupNames = map[string]string{
	"ROL": "Role Registry",
	"ASN": "Role Assignment",
	"AZD": "Decision Engine",
	"SED": "Default Role Seeding",
	"API": "HTTP Surface",
	"ISO": "Tenant Isolation",
	"ORG": "Organization Provisioning",
	"FLW": "Authorization Lifecycle",
	"E2E": "End-to-End",
}

// annotation is the TestPurpose comment block parsed from a test's doc.
type annotation struct {
	Purpose  string `json:"purpose,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Security string `json:"security,omitempty"`
	Expected string `json:"expected,omitempty"`
	CaseID   string `json:"test_case_id,omitempty"`
}

// testEvent is one line of `go test -json` output.
type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

type result struct {
	Name       string     `json:"name"`
	Package    string     `json:"package"`
	Group      string     `json:"group"`
	Status     string     `json:"status"`
	Elapsed    float64    `json:"elapsed_seconds"`
	Failure    string     `json:"failure_reason,omitempty"`
	Annotation annotation `json:"annotation"`
}

type report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []result  `json:"results"`
}

func main() {
	input := flag.String("input", "", "path to `go test -json` output")
	out := flag.String("out", "test-report", "output basename (.json and .md are appended)")
	group := flag.String("group", "", "only include one group prefix (e.g. API)")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: report_gen -input <go-test-json> [-out basename] [-group PREFIX]")
		os.Exit(2)
	}

	annotations := scanAnnotations(".")
	results := collectResults(*input, annotations)

	if *group != "" {
		kept := results[:0]
		for _, r := range results {
			if strings.EqualFold(caseGroup(r.Annotation.CaseID), *group) {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	rep := summarize(results)

	writeJSON(rep, *out+".json")
	writeMarkdown(rep, *out+".md")

	if rep.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d tests failed\n", rep.Failed, rep.Total)
		os.Exit(1)
	}
	fmt.Printf("%d tests, %d passed, %d skipped\n", rep.Total, rep.Passed, rep.Skipped)
}

// scanAnnotations walks the tree and parses the doc comment of every
// TestXxx function into an annotation, keyed by test name.
func scanAnnotations(root string) map[string]annotation {
	annotations := make(map[string]annotation)
	fset := token.NewFileSet()

	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if name := d.Name(); name == "vendor" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Doc == nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			if a, ok := parseAnnotation(fn.Doc.Text()); ok {
				annotations[fn.Name.Name] = a
			}
		}
		return nil
	})

	return annotations
}

func parseAnnotation(doc string) (annotation, bool) {
	var a annotation
	found := false
	current := ""

	appendTo := func(field *string, value string) {
		if *field == "" {
			*field = value
		} else {
			*field += " " + value
		}
	}

	fields := map[string]*string{
		"TestPurpose:":  &a.Purpose,
		"Scope:":        &a.Scope,
		"Security:":     &a.Security,
		"Expected:":     &a.Expected,
		"Test Case ID:": &a.CaseID,
	}

	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		matched := false
		for prefix, field := range fields {
			if strings.HasPrefix(line, prefix) {
				appendTo(field, strings.TrimSpace(strings.TrimPrefix(line, prefix)))
				current = prefix
				found = true
				matched = true
				break
			}
		}
		// Continuation lines belong to the field above them.
		if !matched && current != "" && line != "" {
			appendTo(fields[current], line)
		}
	}

	return a, found
}

func caseGroup(caseID string) string {
	if idx := strings.IndexByte(caseID, '-'); idx > 0 {
		return caseID[:idx]
	}
	return ""
}

func collectResults(path string, annotations map[string]annotation) []result {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()

	type state struct {
		status  string
		elapsed float64
		pkg     string
		output  []string
	}
	states := make(map[string]*state)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var ev testEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}
		// Subtests roll up into their parent.
		name := ev.Test
		if idx := strings.IndexByte(name, '/'); idx > 0 {
			name = name[:idx]
		}

		s, ok := states[name]
		if !ok {
			s = &state{pkg: ev.Package}
			states[name] = s
		}
		switch ev.Action {
		case "pass", "fail", "skip":
			if ev.Test == name {
				s.status = ev.Action
				s.elapsed = ev.Elapsed
			} else if ev.Action == "fail" {
				s.status = "fail"
			}
		case "output":
			if line := strings.TrimSpace(ev.Output); strings.HasPrefix(line, "--- FAIL") ||
				strings.Contains(line, "Error:") || strings.Contains(line, "Error Trace:") {
				s.output = append(s.output, line)
			}
		}
	}

	results := make([]result, 0, len(states))
	for name, s := range states {
		a := annotations[name]
		r := result{
			Name:       name,
			Package:    s.pkg,
			Group:      groupNames[caseGroup(a.CaseID)],
			Status:     s.status,
			Elapsed:    s.elapsed,
			Annotation: a,
		}
		if s.status == "fail" {
			r.Failure = strings.Join(s.output, "\n")
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Annotation.CaseID != results[j].Annotation.CaseID {
			return results[i].Annotation.CaseID < results[j].Annotation.CaseID
		}
		return results[i].Name < results[j].Name
	})
	return results
}

func summarize(results []result) report {
	rep := report{
		GeneratedAt: time.Now().UTC(),
		Total:       len(results),
		Results:     results,
	}
	for _, r := range results {
		switch r.Status {
		case "pass":
			rep.Passed++
		case "fail":
			rep.Failed++
		case "skip":
			rep.Skipped++
		}
	}
	return rep
}

func writeJSON(rep report, path string) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
		os.Exit(1)
	}
}

func writeMarkdown(rep report, path string) {
	var b strings.Builder
	fmt.Fprintf(&b, "# DealDesk Test Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**%d total**: %d passed, %d failed, %d skipped\n\n",
		rep.Total, rep.Passed, rep.Failed, rep.Skipped)

	byGroup := make(map[string][]result)
	var order []string
	for _, r := range rep.Results {
		group := r.Group
		if group == "" {
			group = "Ungrouped"
		}
		if _, seen := byGroup[group]; !seen {
			order = append(order, group)
		}
		byGroup[group] = append(byGroup[group], r)
	}

	for _, group := range order {
		fmt.Fprintf(&b, "## %s\n\n", group)
		fmt.Fprintf(&b, "| ID | Test | Status | Purpose |\n|---|---|---|---|\n")
		for _, r := range byGroup[group] {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				r.Annotation.CaseID, r.Name, strings.ToUpper(r.Status), r.Annotation.Purpose)
		}
		b.WriteString("\n")
		for _, r := range byGroup[group] {
			if r.Failure != "" {
				fmt.Fprintf(&b, "**%s failure:**\n\n```\n%s\n```\n\n", r.Name, r.Failure)
			}
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
		os.Exit(1)
	}
}
