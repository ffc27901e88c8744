// The loadtest harness exercises a running server over the wire protocol
// with a synthetic dependency graph, the way the teacher's
// testing/suite/packages.go built a Package graph from an embedded
// homebrew dependency dump. That dump (data/brew-dependencies.txt) was
// never retrieved alongside the teacher repo, so graph generation here
// is synthetic and seeded instead of embedded, keeping the same shape:
// a registry of named packages, each depending on a handful of
// earlier-registered packages so the graph stays acyclic.
package main

import (
	"fmt"
	"math/rand"
)

// Package is a node in the synthetic dependency graph: a name plus the
// packages it depends on.
type Package struct {
	Name         string
	Dependencies []*Package
}

// AllPackages is a registry of generated packages, mirroring the
// teacher's singleton-by-name factory so the same logical package is
// never represented by two different *Package values.
type AllPackages struct {
	Packages []*Package
	byName   map[string]*Package
}

// NewAllPackages returns an empty package registry.
func NewAllPackages() *AllPackages {
	return &AllPackages{byName: make(map[string]*Package)}
}

// Named finds or creates the package with the given name.
func (a *AllPackages) Named(name string) *Package {
	if pkg, ok := a.byName[name]; ok {
		return pkg
	}
	pkg := &Package{Name: name}
	a.byName[name] = pkg
	a.Packages = append(a.Packages, pkg)
	return pkg
}

// Names returns the names of every registered package.
func (a *AllPackages) Names() []string {
	names := make([]string, len(a.Packages))
	for i, p := range a.Packages {
		names[i] = p.Name
	}
	return names
}

// GenerateGraph builds a synthetic, acyclic dependency graph of n
// packages. Each package may depend on up to maxDeps already-generated
// packages, so indexing the list in order never violates spec.md's
// build-before-depend invariant.
func GenerateGraph(rng *rand.Rand, n, maxDeps int) *AllPackages {
	all := NewAllPackages()
	for i := 0; i < n; i++ {
		pkg := all.Named(fmt.Sprintf("pkg-%05d", i))
		if i == 0 || maxDeps <= 0 {
			continue
		}
		depCount := rng.Intn(maxDeps + 1)
		for d := 0; d < depCount; d++ {
			dep := all.Packages[rng.Intn(i)]
			pkg.AddDependency(dep)
		}
	}
	return all
}

// AddDependency makes pkg depend on to, ignoring a duplicate edge.
func (pkg *Package) AddDependency(to *Package) {
	for _, existing := range pkg.Dependencies {
		if existing == to {
			return
		}
	}
	pkg.Dependencies = append(pkg.Dependencies, to)
}
