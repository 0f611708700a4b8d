// Command sqllint checks that every statement constant (a Q-prefixed string
// constant) starts with a unique "--sql <uuid>" marker. SQLRunner logs the
// marker, so a missing or copied marker makes slow-query logs ambiguous.
//
//	go run ./internal/tools/sqllint ./internal/sqlinline
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var uuidMarkerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

type statement struct {
	file   string
	line   int
	name   string
	marker string
}

type violation struct {
	statement
	message string
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"./internal/sqlinline"}
	}
	violations, err := lint(targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		report(os.Stderr, violations)
		os.Exit(1)
	}
}

func lint(targets []string) ([]violation, error) {
	var stmts []statement
	for _, target := range targets {
		files, err := goFiles(target)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			found, err := collect(path)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, found...)
		}
	}
	return check(stmts), nil
}

func goFiles(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}
	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != target && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// collect returns the Q-prefixed string constants declared in path.
func collect(path string) ([]statement, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, err
	}
	var stmts []statement
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			if i >= len(vs.Names) || !strings.HasPrefix(vs.Names[i].Name, "Q") {
				continue
			}
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil {
				continue
			}
			stmts = append(stmts, statement{
				file:   path,
				line:   fset.Position(bl.Pos()).Line,
				name:   vs.Names[i].Name,
				marker: firstLine(raw),
			})
		}
		return true
	})
	return stmts, nil
}

func check(stmts []statement) []violation {
	var violations []violation
	seen := map[string]statement{}
	for _, s := range stmts {
		if !uuidMarkerPattern.MatchString(s.marker) {
			violations = append(violations, violation{statement: s, message: "missing or invalid --sql <uuid> marker"})
			continue
		}
		if first, ok := seen[s.marker]; ok {
			violations = append(violations, violation{statement: s, message: "marker already used by " + first.name})
			continue
		}
		seen[s.marker] = s
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].file != violations[j].file {
			return violations[i].file < violations[j].file
		}
		return violations[i].line < violations[j].line
	})
	return violations
}

func report(w io.Writer, violations []violation) {
	fmt.Fprintln(w, "sqllint: invalid SQL audit markers")
	for _, v := range violations {
		fmt.Fprintf(w, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
	}
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) >= 2 && v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
