package lendpanel_test

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestModuleDependencies_Present(t *testing.T) {
	for _, module := range []string{
		"github.com/gin-gonic/gin",
		"github.com/redis/go-redis/v9",
		"github.com/prometheus/client_golang",
		"github.com/go-chi/httprate",
		"github.com/unrolled/secure",
		"github.com/golang-jwt/jwt/v5",
		"github.com/knadh/koanf/v2",
		"github.com/simp-lee/pagination",
		"golang.org/x/sync",
		"golang.org/x/text",
	} {
		t.Run(module, func(t *testing.T) {
			testModulePresence(t, module)
		})
	}
}

func TestRemoteCalls_OnlyThroughClient(t *testing.T) {
	t.Run("happy_repo_has_no_direct_http_calls", func(t *testing.T) {
		matches, err := findDirectHTTPCalls(filepath.Join("internal", "module"))
		if err != nil {
			t.Fatalf("scan repository: %v", err)
		}
		if len(matches) != 0 {
			t.Fatalf("expected lending API calls to go through internal/remote, found direct calls in: %v", matches)
		}
	})

	t.Run("error_fixture_with_direct_call_is_detected", func(t *testing.T) {
		fixture := `package dataset
func load() { resp, _ := http.Get("https://api.example.com/loans/") ; _ = resp }`
		if !hasDirectHTTPCall(fixture) {
			t.Fatal("expected direct call to be detected in fixture")
		}
	})
}

func testModulePresence(t *testing.T, module string) {
	t.Helper()

	t.Run("happy_present_in_real_go_mod", func(t *testing.T) {
		goMod, err := os.ReadFile("go.mod")
		if err != nil {
			t.Fatalf("read go.mod: %v", err)
		}
		if !moduleRequired(string(goMod), module) {
			t.Fatalf("expected module %q to be present in go.mod", module)
		}
	})

	t.Run("error_missing_module_in_fixture", func(t *testing.T) {
		fixture := `module example.com/demo

go 1.25.0

require (
	github.com/google/uuid v1.6.0
)`
		if moduleRequired(fixture, module) {
			t.Fatalf("expected fixture to not contain module %q", module)
		}
	})
}

func moduleRequired(goModContent, module string) bool {
	re := regexp.MustCompile(`(?m)^\s*` + regexp.QuoteMeta(module) + `\s+v\S+`)
	return re.MatchString(goModContent)
}

func findDirectHTTPCalls(root string) ([]string, error) {
	matches := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		b, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		if hasDirectHTTPCall(string(b)) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func hasDirectHTTPCall(content string) bool {
	re := regexp.MustCompile(`\bhttp\.(Get|Post|PostForm|Head|NewRequest(WithContext)?)\s*\(|\bhttp\.DefaultClient\b`)
	return re.MatchString(content)
}
