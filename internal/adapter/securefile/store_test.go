package securefile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSetGetDeleteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := store.SetPassword(ctx, "svc", "acct", "s3cret"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	got, err := store.GetPassword(ctx, "svc", "acct")
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("password = %q", got)
	}

	deleted, err := store.DeletePassword(ctx, "svc", "acct")
	if err != nil {
		t.Fatalf("DeletePassword: %v", err)
	}
	if !deleted {
		t.Error("DeletePassword reported nothing deleted")
	}

	got, err = store.GetPassword(ctx, "svc", "acct")
	if err != nil {
		t.Fatalf("GetPassword after delete: %v", err)
	}
	if got != "" {
		t.Errorf("password after delete = %q, want empty", got)
	}

	deleted, err = store.DeletePassword(ctx, "svc", "acct")
	if err != nil {
		t.Fatalf("DeletePassword again: %v", err)
	}
	if deleted {
		t.Error("second delete reported success")
	}
}

func TestGetMissingIsEmpty(t *testing.T) {
	store, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := store.GetPassword(context.Background(), "svc", "nope")
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if got != "" {
		t.Errorf("password = %q, want empty", got)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(dir, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.SetPassword(ctx, "svc", "acct", "keep-me"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	reopened, err := New(dir, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetPassword(ctx, "svc", "acct")
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if got != "keep-me" {
		t.Errorf("password = %q", got)
	}
}

func TestCustomKeyFileName(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(dir, "master.key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.SetPassword(ctx, "svc", "acct", "pw"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "master.key")); err != nil {
		t.Fatalf("named keyfile missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, defaultKeyFile)); !os.IsNotExist(err) {
		t.Errorf("default keyfile created alongside named one: %v", err)
	}

	reopened, err := New(dir, "master.key")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.GetPassword(ctx, "svc", "acct")
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if got != "pw" {
		t.Errorf("password = %q", got)
	}
}

func TestFindCredentialsSorted(t *testing.T) {
	store, err := New(t.TempDir(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	for _, account := range []string{"zeta", "alpha", "mid"} {
		if err := store.SetPassword(ctx, "svc", account, "pw-"+account); err != nil {
			t.Fatalf("SetPassword %s: %v", account, err)
		}
	}
	if err := store.SetPassword(ctx, "other", "acct", "pw"); err != nil {
		t.Fatalf("SetPassword other: %v", err)
	}

	creds, err := store.FindCredentials(ctx, "svc")
	if err != nil {
		t.Fatalf("FindCredentials: %v", err)
	}
	if len(creds) != 3 {
		t.Fatalf("got %d credentials, want 3", len(creds))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, cred := range creds {
		if cred.Account != want[i] {
			t.Errorf("creds[%d].Account = %q, want %q", i, cred.Account, want[i])
		}
	}
}

func TestFileIsNotPlaintext(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.SetPassword(context.Background(), "svc", "acct", "super-secret-value"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, credentialsFile))
	if err != nil {
		t.Fatalf("read credential file: %v", err)
	}
	if bytes.Contains(raw, []byte("super-secret-value")) {
		t.Error("credential file contains the plaintext password")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := deriveKey([]byte("secret"), []byte("0123456789abcdef"))

	sealed, err := encrypt([]byte("payload"), key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := decrypt(sealed, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != "payload" {
		t.Errorf("plaintext = %q", plain)
	}

	other := deriveKey([]byte("different"), []byte("0123456789abcdef"))
	if _, err := decrypt(sealed, other); err == nil {
		t.Error("decrypt succeeded with the wrong key")
	}

	if _, err := decrypt([]byte("short"), key); err == nil {
		t.Error("decrypt succeeded on truncated ciphertext")
	}
}
