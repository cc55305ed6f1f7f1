// validate-rules checks a rule catalog file before it ships.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/redlantern-games/drawlog/internal/catalog"
)

func main() {
	file := flag.String("file", "assets/data/rules.json", "rule catalog to validate")
	flag.Parse()

	rules, err := catalog.Load(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate-rules: %v\n", err)
		os.Exit(1)
	}

	res := catalog.Validate(rules)
	fmt.Print(res.Report())

	counts := catalog.CountByCategory(rules)
	fmt.Printf("%d rule(s) in %d categor(ies)\n", len(rules), len(counts))
	for _, cat := range catalog.SortedCategories(counts) {
		fmt.Printf("  %-10s %d\n", cat, counts[cat])
	}

	if !res.OK() {
		os.Exit(1)
	}
}
