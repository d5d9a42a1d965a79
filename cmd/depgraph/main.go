// Command depgraph generates a Graphviz DOT description of this
// module's package dependency graph.
//
// Grounded on misc/depgraph/main.go's shelling out to `go mod graph`
// and reformatting its output as a digraph; reimplemented here against
// golang.org/x/tools/go/packages so the graph walk runs in-process
// against package import edges (not module requirement edges), giving
// a finer-grained picture of which internal package pulls in which.
package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/tools/go/packages"
)

func main() {
	pattern := "./..."
	if len(os.Args) > 1 {
		pattern = os.Args[1]
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps,
	}
	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		fmt.Printf("load failed: %v\n", err)
		os.Exit(1)
	}
	if packages.PrintErrors(pkgs) > 0 {
		os.Exit(1)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	fmt.Fprintln(w, "digraph deps {")
	seen := make(map[string]bool)
	packages.Visit(pkgs, func(pkg *packages.Package) bool {
		for _, imp := range pkg.Imports {
			edge := pkg.PkgPath + "\x00" + imp.PkgPath
			if seen[edge] {
				continue
			}
			seen[edge] = true
			fmt.Fprintf(w, "    %q -> %q;\n", pkg.PkgPath, imp.PkgPath)
		}
		return true
	}, nil)
	fmt.Fprintln(w, "}")
}
