package tokens

import "testing"

func TestGenerateOpaqueToken_UniqueAndURLSafe(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := GenerateOpaqueToken(32)
		if err != nil {
			t.Fatal(err)
		}
		if len(tok) == 0 {
			t.Fatal("empty token")
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %s", tok)
		}
		seen[tok] = true
		for _, r := range tok {
			if r == '+' || r == '/' || r == '=' {
				t.Fatalf("token not base64url: %q", tok)
			}
		}
	}
}

func TestSHA256Base64URL_Deterministic(t *testing.T) {
	a := SHA256Base64URL("hello")
	b := SHA256Base64URL("hello")
	if a != b {
		t.Fatal("hash not deterministic")
	}
	if a == SHA256Base64URL("hello2") {
		t.Fatal("distinct inputs collided")
	}
	// sha256 -> 32 bytes -> 43 chars base64url sin padding
	if len(a) != 43 {
		t.Fatalf("unexpected hash length %d", len(a))
	}
}
