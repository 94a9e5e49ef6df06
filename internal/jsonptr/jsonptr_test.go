package jsonptr

import (
	"bytes"
	"encoding/json"
	"testing"
)

// decode parses a JSON document the same way the record workers do, with
// numbers kept in their source form.
func decode(t *testing.T, src string) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(src)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", src, err)
	}
	return v
}

func TestResolve_BareKey(t *testing.T) {
	t.Parallel()

	root := decode(t, `{"DOI":"10.1/x","member":311}`)

	r := Resolve(root, "DOI")
	if r.Kind != Node {
		t.Fatalf("Resolve(DOI).Kind = %v, want Node", r.Kind)
	}
	if s, ok := Stringify(r.Value); !ok || s != "10.1/x" {
		t.Fatalf("Stringify = %q/%v, want 10.1/x", s, ok)
	}

	if r := Resolve(root, "missing"); r.Kind != NotFound {
		t.Fatalf("Resolve(missing).Kind = %v, want NotFound", r.Kind)
	}

	// A bare key never descends, even when it contains a dot.
	if r := Resolve(root, "DOI.x"); r.Kind != NotFound {
		t.Fatalf("Resolve(DOI.x).Kind = %v, want NotFound", r.Kind)
	}
}

func TestResolve_Pointer(t *testing.T) {
	t.Parallel()

	root := decode(t, `{
	  "a": {"b": [{"c": 1}, {"c": 2}]},
	  "odd~key": {"x/y": "v"},
	  "nums": [10, 20, 30]
	}`)

	tests := []struct {
		path string
		kind Kind
		text string // Stringify of Value when kind == Node and scalar
	}{
		{"/a/b/0/c", Node, "1"},
		{"/a/b/1/c", Node, "2"},
		{"/a/b", Nodes, ""},
		{"/a/b/2/c", NotFound, ""},
		{"/a/b/-1", NotFound, ""},
		{"/a/missing", NotFound, ""},
		{"/a/b/0/c/d", NotFound, ""},
		{"/nums/1", Node, "20"},
		{"/odd~0key/x~1y", Node, "v"},
	}
	for _, tt := range tests {
		r := Resolve(root, tt.path)
		if r.Kind != tt.kind {
			t.Fatalf("Resolve(%q).Kind = %v, want %v", tt.path, r.Kind, tt.kind)
		}
		if tt.kind == Node && tt.text != "" {
			s, ok := Stringify(r.Value)
			if !ok || s != tt.text {
				t.Fatalf("Resolve(%q) → %q/%v, want %q", tt.path, s, ok, tt.text)
			}
		}
	}
}

func TestResolve_NumericTokenOnObject(t *testing.T) {
	t.Parallel()

	// Numeric tokens are plain keys when the current node is an object.
	root := decode(t, `{"0": "zero", "arr": ["a"]}`)

	r := Resolve(root, "/0")
	if r.Kind != Node {
		t.Fatalf("Resolve(/0).Kind = %v, want Node", r.Kind)
	}
	if s, _ := Stringify(r.Value); s != "zero" {
		t.Fatalf("Resolve(/0) = %q, want zero", s)
	}

	if r := Resolve(root, "/arr/0"); r.Kind != Node {
		t.Fatalf("Resolve(/arr/0).Kind = %v, want Node", r.Kind)
	}
}

func TestResolve_ArrayRoot(t *testing.T) {
	t.Parallel()

	root := decode(t, `{"author":[{"given":"Ada"}]}`)
	r := Resolve(root, "author")
	if r.Kind != Nodes {
		t.Fatalf("Resolve(author).Kind = %v, want Nodes", r.Kind)
	}
	if got := len(r.List()); got != 1 {
		t.Fatalf("len(List()) = %d, want 1", got)
	}
}

func TestStringify(t *testing.T) {
	t.Parallel()

	root := decode(t, `{"s":"x","i":311,"f":1.5,"b":true,"n":null,"o":{},"a":[]}`)
	m := root.(map[string]any)

	cases := []struct {
		key  string
		want string
		ok   bool
	}{
		{"s", "x", true},
		{"i", "311", true},
		{"f", "1.5", true},
		{"b", "true", true},
		{"n", "", false},
		{"o", "", false},
		{"a", "", false},
	}
	for _, c := range cases {
		got, ok := Stringify(m[c.key])
		if ok != c.ok || got != c.want {
			t.Fatalf("Stringify(%s) = %q/%v, want %q/%v", c.key, got, ok, c.want, c.ok)
		}
	}
}

func TestField(t *testing.T) {
	t.Parallel()

	root := decode(t, `{"name":"MIT"}`)
	if v, ok := Field(root, "name"); !ok {
		t.Fatalf("Field(name) missing, want present (%v)", v)
	}
	if _, ok := Field(root, "nope"); ok {
		t.Fatal("Field(nope) present, want missing")
	}
	if _, ok := Field([]any{1}, "name"); ok {
		t.Fatal("Field on array present, want missing")
	}
}
