package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

// chdir switches to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err = os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestModulePath(t *testing.T) {
	specs := []struct {
		contents string
		expPath  string
		expErr   bool
	}{
		{"module github.com/DrakulaD3a/redos\n\ngo 1.21\n", "github.com/DrakulaD3a/redos", false},
		{"// comment\nmodule \"example.com/quoted\"\n", "example.com/quoted", false},
		{"go 1.21\n", "", true},
	}

	for specIndex, spec := range specs {
		goMod := filepath.Join(t.TempDir(), "go.mod")
		writeFile(t, goMod, spec.contents)

		got, err := modulePath(goMod)
		if spec.expErr {
			if err != errNoModuleDirective {
				t.Errorf("[spec %d] expected errNoModuleDirective; got %v", specIndex, err)
			}
			continue
		}

		if err != nil || got != spec.expPath {
			t.Errorf("[spec %d] expected module path %q; got %q (err: %v)", specIndex, spec.expPath, got, err)
		}
	}

	if _, err := modulePath(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected an error for a missing go.mod file")
	}
}

func TestFindRedirects(t *testing.T) {
	chdir(t, t.TempDir())

	writeFile(t, "kernel/kfmt/panic.go", `package kfmt

// Panic halts the CPU.
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {}

//go:redirect-from runtime.throw
func panicString(msg string) {}

// unrelated has no directive.
func unrelated() {}
`)
	writeFile(t, "kernel/kfmt/panic_test.go", `package kfmt

//go:redirect-from runtime.ignored
func testOnly() {}
`)
	writeFile(t, "kernel/_skipped/skip.go", `package skipped

//go:redirect-from runtime.skipped
func Skipped() {}
`)

	goFiles, err := collectGoFiles("kernel")
	if err != nil {
		t.Fatal(err)
	}

	if len(goFiles) != 1 || goFiles[0] != filepath.Join("kernel", "kfmt", "panic.go") {
		t.Fatalf("expected only kernel/kfmt/panic.go to be collected; got %v", goFiles)
	}

	redirects, err := findRedirects("github.com/DrakulaD3a/redos", goFiles)
	if err != nil {
		t.Fatal(err)
	}

	exp := []struct{ src, dst string }{
		{"runtime.gopanic", "github.com/DrakulaD3a/redos/kernel/kfmt.Panic"},
		{"runtime.throw", "github.com/DrakulaD3a/redos/kernel/kfmt.panicString"},
	}

	if len(redirects) != len(exp) {
		t.Fatalf("expected %d redirects; got %d", len(exp), len(redirects))
	}

	for i, e := range exp {
		if redirects[i].src != e.src || redirects[i].dst != e.dst {
			t.Errorf("expected redirect %d to be %s -> %s; got %s -> %s", i, e.src, e.dst, redirects[i].src, redirects[i].dst)
		}
	}
}

func TestFindRedirectsErrors(t *testing.T) {
	specs := []struct {
		contents  string
		expErrMsg string
	}{
		{
			"package foo\n\n//go:redirect-from\nfunc Foo() {}\n",
			"malformed go:redirect-from syntax",
		},
		{
			"package foo\n\n//go:redirect-from runtime.a runtime.b\nfunc Foo() {}\n",
			"malformed go:redirect-from syntax",
		},
		{
			"package foo\n\nfunc {\n",
			"foo.go",
		},
	}

	for specIndex, spec := range specs {
		chdir(t, t.TempDir())
		writeFile(t, "foo.go", spec.contents)

		_, err := findRedirects("example.com/mod", []string{"foo.go"})
		if err == nil || !strings.Contains(err.Error(), spec.expErrMsg) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErrMsg, err)
		}
	}
}

func TestResolveRedirectSymbols(t *testing.T) {
	symbols := []elf.Symbol{
		{Name: "runtime.gopanic", Value: 0x1000},
		{Name: "github.com/DrakulaD3a/redos/kernel/kfmt.Panic", Value: 0x2000},
		{Name: "runtime.throw", Value: 0x3000},
	}

	t.Run("success", func(t *testing.T) {
		redirects := []*redirect{{src: "runtime.gopanic", dst: "github.com/DrakulaD3a/redos/kernel/kfmt.Panic"}}
		if err := resolveRedirectSymbols(redirects, symbols, "kernel.elf"); err != nil {
			t.Fatal(err)
		}

		if redirects[0].srcVMA != 0x1000 || redirects[0].dstVMA != 0x2000 {
			t.Fatalf("expected VMAs 0x1000 -> 0x2000; got 0x%x -> 0x%x", redirects[0].srcVMA, redirects[0].dstVMA)
		}

		var buf bytes.Buffer
		if err := writeRedirectTable(&buf, redirects); err != nil {
			t.Fatal(err)
		}

		var table [2]uint64
		if err := binary.Read(&buf, binary.LittleEndian, &table); err != nil {
			t.Fatal(err)
		}

		if table[0] != 0x1000 || table[1] != 0x2000 {
			t.Fatalf("expected table entry {0x1000, 0x2000}; got {0x%x, 0x%x}", table[0], table[1])
		}
	})

	specs := []struct {
		redirect  redirect
		expErrMsg string
	}{
		{redirect{src: "runtime.missing", dst: "github.com/DrakulaD3a/redos/kernel/kfmt.Panic"}, `"runtime.missing"`},
		{redirect{src: "runtime.throw", dst: "example.com/missing.Fn"}, `"example.com/missing.Fn"`},
	}

	for specIndex, spec := range specs {
		r := spec.redirect
		err := resolveRedirectSymbols([]*redirect{&r}, symbols, "kernel.elf")
		if err == nil || !strings.Contains(err.Error(), spec.expErrMsg) {
			t.Errorf("[spec %d] expected error containing %s; got %v", specIndex, spec.expErrMsg, err)
		}
	}
}
