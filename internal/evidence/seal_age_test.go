package evidence

import (
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
)

func TestSealAgeRoundtrip(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	path := filepath.Join(t.TempDir(), "command-test.txt")
	if err := os.WriteFile(path, []byte("sensitive evidence body"), 0o600); err != nil {
		t.Fatal(err)
	}

	sealedPath, err := SealAge(path, identity.Recipient().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Ext(sealedPath) != ".age" {
		t.Fatalf("sealedPath = %q, want .age suffix", sealedPath)
	}

	plaintext, err := OpenAgeSeal(sealedPath, identity.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(plaintext) != "sensitive evidence body" {
		t.Fatalf("plaintext = %q", plaintext)
	}
}

func TestSealAgeRejectsInvalidRecipient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command-test.txt")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := SealAge(path, "not-a-valid-recipient"); err == nil {
		t.Fatal("expected error for invalid recipient")
	}
}
