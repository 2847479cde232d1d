package auth

import "testing"

func TestBcryptDigestRoundTrip(t *testing.T) {
	d := NewBcryptDigest()

	digest, err := d.Hash("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if digest == "password1" {
		t.Fatal("digest must not be the plaintext")
	}

	if err := d.Compare(digest, "password1"); err != nil {
		t.Fatalf("matching password should compare clean: %v", err)
	}
	if err := d.Compare(digest, "password2"); err == nil {
		t.Fatal("wrong password must not compare")
	}
}

func TestBcryptDigestIsSalted(t *testing.T) {
	d := NewBcryptDigest()

	first, err := d.Hash("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := d.Hash("password1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ")
	}
}
