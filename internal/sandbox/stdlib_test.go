package sandbox

import (
	"context"
	"testing"
)

func TestPathModuleJoinAndSplit(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code:      `print(path.join("a", "b", "c.txt"))` + "\n" + `print(path.dirname("a/b/c.txt"))` + "\n" + `print(path.basename("a/b/c.txt"))`,
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	want := "a/b/c.txt\na/b\nc.txt\n"
	if result.Stdout != want {
		t.Fatalf("expected stdout %q, got %q", want, result.Stdout)
	}
}

func TestPathModuleSplitext(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code:      `root, ext = path.splitext("report.final.csv")` + "\n" + `print(root)` + "\n" + `print(ext)`,
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	want := "report.final\n.csv\n"
	if result.Stdout != want {
		t.Fatalf("expected stdout %q, got %q", want, result.Stdout)
	}
}

func TestURLModuleParse(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code: `u = url.parse("https://example.com/a/b?x=1#frag")` + "\n" +
			`print(u.scheme)` + "\n" + `print(u.host)` + "\n" + `print(u.path)` + "\n" + `print(u.query["x"])` + "\n" + `print(u.fragment)`,
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	want := "https\nexample.com\n/a/b\n1\nfrag\n"
	if result.Stdout != want {
		t.Fatalf("expected stdout %q, got %q", want, result.Stdout)
	}
}

func TestCollectionsModuleCountAndUnique(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code: `counts = collections.count(["a", "b", "a", "c", "b", "a"])` + "\n" +
			`print(counts["a"])` + "\n" +
			`print(collections.unique([3, 1, 3, 2, 1]))`,
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	want := "3\n[3, 1, 2]\n"
	if result.Stdout != want {
		t.Fatalf("expected stdout %q, got %q", want, result.Stdout)
	}
}

func TestAllowedModulesListIncludesNewModules(t *testing.T) {
	for _, mod := range []string{"path", "url", "collections"} {
		if !isAllowedModule(mod) {
			t.Fatalf("expected %q to be an allowed module", mod)
		}
	}
}
