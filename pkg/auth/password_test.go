package auth

import "testing"

func TestHashPasswordAndCheckPasswordBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("expected bcrypt password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("expected bcrypt password check to fail")
	}
}

func TestIsHashDetectsLegacyCredentials(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !IsHash(hash) {
		t.Fatalf("expected bcrypt output to be recognized as a hash")
	}
	legacy := []string{
		"",
		"plaintext",
		"hunter2hunter2hunter2hunter2hunter2hunter2hunter2hunter2hunt",
		"$2a$tooshort",
	}
	for _, cred := range legacy {
		if IsHash(cred) {
			t.Fatalf("credential %q should be treated as legacy plaintext", cred)
		}
	}
}
