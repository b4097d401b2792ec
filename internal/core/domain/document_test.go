package domain

import "testing"

func TestHashContent(t *testing.T) {
	// sha256("") is a well-known constant.
	if got := HashContent(""); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Fatalf("HashContent(\"\") = %q", got)
	}
	if HashContent("a") == HashContent("b") {
		t.Fatal("distinct content must hash differently")
	}
}

func TestDocumentMetadata_RecomputesHash(t *testing.T) {
	d := &Document{ID: "d1", Content: "hello"}
	md := d.Metadata()
	if md.ContentHash != HashContent("hello") {
		t.Fatalf("ContentHash = %q", md.ContentHash)
	}
}

func TestDocumentClone(t *testing.T) {
	d := &Document{
		ID:         "d1",
		Attributes: map[string]string{"k": "v"},
		Embedding:  []float32{0.1, 0.2},
	}
	clone := d.Clone()
	clone.Attributes["k"] = "mutated"
	clone.Embedding[0] = 9

	if d.Attributes["k"] != "v" {
		t.Fatal("Clone must not share attributes map")
	}
	if d.Embedding[0] != 0.1 {
		t.Fatal("Clone must not share embedding slice")
	}
}

func TestResolutionPolicyValid(t *testing.T) {
	for _, p := range []ResolutionPolicy{PolicyKeepLocal, PolicyKeepRemote, PolicyKeepLatest, PolicyAsk} {
		if !p.Valid() {
			t.Fatalf("%s should be valid", p)
		}
	}
	if ResolutionPolicy("coin_flip").Valid() {
		t.Fatal("unknown policy should be invalid")
	}
}
