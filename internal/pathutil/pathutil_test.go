package pathutil

import (
	"strings"
	"testing"
)

func TestResolveExpandsHomePrefix(t *testing.T) {
	r := NewResolver("/home/alice")
	cases := map[string]string{
		"~/":              "/home/alice/",
		"~/projects/app":  "/home/alice/projects/app",
		"~/a/../b":        "/home/alice/a/../b",
		"":                "",
		"~":               "~",
		"~alice/x":        "~alice/x",
		"./rel/path":      "./rel/path",
		"/abs/~/path":     "/abs/~/path",
		"rel/~/not-home":  "rel/~/not-home",
		"dir/with/slash/": "dir/with/slash/",
	}
	for in, want := range cases {
		if got := r.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveAllReturnsNewSlice(t *testing.T) {
	r := NewResolver("/h")
	in := []string{"~/a", "b"}
	out := r.ResolveAll(in)
	if out[0] != "/h/a" || out[1] != "b" {
		t.Fatalf("unexpected: %#v", out)
	}
	if in[0] != "~/a" {
		t.Fatalf("input mutated: %#v", in)
	}
}

func TestDefaultIsStable(t *testing.T) {
	a := Default()
	b := Default()
	if a != b {
		t.Fatalf("Default should return the same resolver")
	}
	if got := a.Resolve("~/x"); !strings.HasSuffix(got, "/x") || strings.HasPrefix(got, "~") {
		t.Fatalf("unexpected default resolve: %q", got)
	}
}

func TestJoinKeepsTrailingSeparator(t *testing.T) {
	if got := Join("/work", "out/"); got != "/work/out/" {
		t.Fatalf("got %q", got)
	}
	if got := Join("/work/", "a.txt"); got != "/work/a.txt" {
		t.Fatalf("got %q", got)
	}
	if got := Join("/work", "/abs"); got != "/abs" {
		t.Fatalf("got %q", got)
	}
	if got := Join("", "rel"); got != "rel" {
		t.Fatalf("got %q", got)
	}
}

func TestLastSegment(t *testing.T) {
	cases := map[string]string{
		"some/file.txt": "file.txt",
		"srcdir":        "srcdir",
		"srcdir/":       "",
		"/a/b/c":        "c",
	}
	for in, want := range cases {
		if got := LastSegment(in); got != want {
			t.Errorf("LastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func FuzzResolve(f *testing.F) {
	f.Add("~/x")
	f.Add("plain")
	f.Add("")
	r := NewResolver("/home/u")
	f.Fuzz(func(t *testing.T, p string) {
		got := r.Resolve(p)
		if strings.HasPrefix(p, "~/") {
			if got != "/home/u/"+p[2:] {
				t.Fatalf("Resolve(%q) = %q", p, got)
			}
			return
		}
		if got != p {
			t.Fatalf("Resolve(%q) changed input to %q", p, got)
		}
	})
}
