package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/keyhash/internal/checksum"
	"github.com/starford/keyhash/internal/clock"
	"github.com/starford/keyhash/internal/document"
	"github.com/starford/keyhash/internal/extract"
	"github.com/starford/keyhash/internal/ledger"
	"github.com/starford/keyhash/internal/models"
	"github.com/starford/keyhash/internal/seal"
	"github.com/starford/keyhash/internal/testutil"
)

const secret = "01234567890123456789012345678901"

func testServer(t *testing.T, withLedger bool) (*Server, string) {
	t.Helper()
	clk := clock.Fixed(time.Unix(1700000000, 0))
	w, _ := testutil.TestWriter(t, clk)

	opts := []extract.Option{extract.WithLogger(testutil.DiscardLogger()), extract.WithClock(clk)}
	var history ledger.Reader
	if withLedger {
		db := testutil.TestLedger(t)
		opts = append(opts, extract.WithLedger(db))
		history = db
	}
	svc := extract.NewService(document.NewLoader(), w, opts...)
	return New(svc, history, seal.New(seal.Fernet, 10)), testutil.SourceDoc(t, testutil.SampleDoc)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "extract_key":
		result, err = srv.extractKey(ctx, req)
	case "hash_text":
		result, err = srv.hashText(ctx, req)
	case "encrypt_message":
		result, err = srv.encryptMessage(ctx, req)
	case "decrypt_message":
		result, err = srv.decryptMessage(ctx, req)
	case "sample_pairs":
		result, err = srv.samplePairs(ctx, req)
	case "list_artifacts":
		result, err = srv.listArtifacts(ctx, req)
	case "get_document_layout":
		result, err = srv.getDocumentLayout(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestExtractKey(t *testing.T) {
	srv, source := testServer(t, true)

	r := callTool(t, srv, "extract_key", map[string]interface{}{"source": source, "key": "B"})
	if r.IsError {
		t.Fatalf("extract_key failed: %s", resultText(r))
	}
	var a models.Artifact
	if err := json.Unmarshal([]byte(resultText(r)), &a); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if !strings.HasSuffix(a.Path, "B_hashed_1700000000.txt") {
		t.Errorf("path = %q", a.Path)
	}
	want, _ := checksum.HashText(checksum.SHA256, "secret")
	if a.Digest != want {
		t.Errorf("digest = %q, want %q", a.Digest, want)
	}
	data, err := os.ReadFile(a.Path)
	if err != nil || string(data) != want {
		t.Errorf("artifact content = %q, err = %v", data, err)
	}
}

func TestExtractKey_Errors(t *testing.T) {
	srv, source := testServer(t, false)
	cases := []struct {
		key  string
		want string
	}{
		{"Missing", "unknown key"},
		{"Empty", "malformed record"},
		{"Scalar", "malformed record"},
	}
	for _, tc := range cases {
		r := callTool(t, srv, "extract_key", map[string]interface{}{"source": source, "key": tc.key})
		if !r.IsError {
			t.Errorf("%s: expected error", tc.key)
			continue
		}
		if !strings.Contains(resultText(r), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.key, resultText(r), tc.want)
		}
	}
}

func TestExtractKey_MissingArgument(t *testing.T) {
	srv, _ := testServer(t, false)
	r := callTool(t, srv, "extract_key", map[string]interface{}{"key": "B"})
	if !r.IsError {
		t.Error("expected error without source")
	}
}

func TestHashText(t *testing.T) {
	srv, _ := testServer(t, false)

	r := callTool(t, srv, "hash_text", map[string]interface{}{"text": "secret"})
	want, _ := checksum.HashText(checksum.SHA256, "secret")
	if got := resultText(r); got != want {
		t.Errorf("sha256 = %q, want %q", got, want)
	}

	r = callTool(t, srv, "hash_text", map[string]interface{}{"text": "secret", "algorithm": "blake3"})
	want, _ = checksum.HashText(checksum.BLAKE3, "secret")
	if got := resultText(r); got != want {
		t.Errorf("blake3 = %q, want %q", got, want)
	}

	r = callTool(t, srv, "hash_text", map[string]interface{}{"text": "secret", "algorithm": "md5"})
	if !r.IsError {
		t.Error("md5 should be rejected")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	srv, _ := testServer(t, false)

	r := callTool(t, srv, "encrypt_message", map[string]interface{}{"message": "Hello, World!", "secret": secret})
	if r.IsError {
		t.Fatalf("encrypt failed: %s", resultText(r))
	}
	r = callTool(t, srv, "decrypt_message", map[string]interface{}{"ciphertext": resultText(r), "secret": secret})
	if got := resultText(r); got != "Hello, World!" {
		t.Errorf("decrypt = %q", got)
	}

	r = callTool(t, srv, "encrypt_message", map[string]interface{}{"message": "x", "secret": "short"})
	if !r.IsError {
		t.Error("short secret should be rejected")
	}
}

func TestSamplePairs(t *testing.T) {
	srv, _ := testServer(t, false)

	r := callTool(t, srv, "sample_pairs", map[string]interface{}{"word": "hello"})
	var got []string
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d pairs", len(got))
	}
	for _, p := range got {
		if !strings.Contains("hello", p) || len(p) != 2 {
			t.Errorf("pair %q is not adjacent in hello", p)
		}
	}

	r = callTool(t, srv, "sample_pairs", map[string]interface{}{"word": "abc123"})
	if !r.IsError {
		t.Error("non-alphabetic word should be rejected")
	}
}

func TestListArtifacts(t *testing.T) {
	srv, source := testServer(t, true)
	_ = callTool(t, srv, "extract_key", map[string]interface{}{"source": source, "key": "B"})

	r := callTool(t, srv, "list_artifacts", map[string]interface{}{"key": "B"})
	var rows []models.Artifact
	if err := json.Unmarshal([]byte(resultText(r)), &rows); err != nil {
		t.Fatalf("decode: %v (%s)", err, resultText(r))
	}
	if len(rows) != 1 || rows[0].Key != "B" {
		t.Errorf("rows = %+v", rows)
	}

	r = callTool(t, srv, "list_artifacts", map[string]interface{}{"key": "C"})
	if !strings.HasPrefix(resultText(r), "no artifacts") {
		t.Errorf("empty result = %q", resultText(r))
	}
}

func TestListArtifacts_LedgerDisabled(t *testing.T) {
	srv, _ := testServer(t, false)
	r := callTool(t, srv, "list_artifacts", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error with ledger disabled")
	}
}

func TestDocumentLayout(t *testing.T) {
	srv, _ := testServer(t, false)
	r := callTool(t, srv, "get_document_layout", map[string]interface{}{})
	if !strings.Contains(resultText(r), "maindata") {
		t.Error("layout should describe maindata")
	}

	contents, err := srv.readLayoutResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, err = %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != LayoutURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
