package auth

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptedFileStorage(t *testing.T) {
	tmpDir := t.TempDir()

	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create encrypted storage: %v", err)
	}

	testData := []byte(`{"accessToken":"test-token"}`)

	err = storage.Save("test-profile", testData)
	if err != nil {
		t.Errorf("Save failed: %v", err)
	}

	// Verify the file exists and is encrypted
	credFile := filepath.Join(tmpDir, "credentials", "test-profile.enc")
	encryptedData, err := os.ReadFile(credFile)
	if err != nil {
		t.Errorf("Failed to read encrypted file: %v", err)
	}

	if string(encryptedData) == string(testData) {
		t.Error("Data was not encrypted")
	}

	loaded, err := storage.Load("test-profile")
	if err != nil {
		t.Errorf("Load failed: %v", err)
	}

	if string(loaded) != string(testData) {
		t.Errorf("Loaded data doesn't match original. Got: %s, Want: %s", string(loaded), string(testData))
	}

	err = storage.Delete("test-profile")
	if err != nil {
		t.Errorf("Delete failed: %v", err)
	}

	if _, err := os.Stat(credFile); !os.IsNotExist(err) {
		t.Error("File was not deleted")
	}
}

func TestPlainFileStorage(t *testing.T) {
	tmpDir := t.TempDir()

	storage := NewPlainFileStorage(tmpDir)
	testData := []byte(`{"accessToken":"test-token"}`)

	err := storage.Save("test-profile", testData)
	if err != nil {
		t.Errorf("Save failed: %v", err)
	}

	loaded, err := storage.Load("test-profile")
	if err != nil {
		t.Errorf("Load failed: %v", err)
	}

	if string(loaded) != string(testData) {
		t.Errorf("Loaded data doesn't match. Got: %s, Want: %s", string(loaded), string(testData))
	}

	err = storage.Delete("test-profile")
	if err != nil {
		t.Errorf("Delete failed: %v", err)
	}
}

func TestEncryptionRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	storage, err := NewEncryptedFileStorage(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create encrypted storage: %v", err)
	}

	testCases := []string{
		"simple text",
		`{"complex":"json","with":"values"}`,
		"text with special characters: üöä@#$%^&*()",
		"",
	}

	for i, testData := range testCases {
		encrypted, err := storage.encrypt([]byte(testData))
		if err != nil {
			t.Errorf("Test case %d: encrypt failed: %v", i, err)
			continue
		}

		decrypted, err := storage.decrypt(encrypted)
		if err != nil {
			t.Errorf("Test case %d: decrypt failed: %v", i, err)
			continue
		}

		if string(decrypted) != testData {
			t.Errorf("Test case %d: roundtrip failed. Got: %s, Want: %s", i, string(decrypted), testData)
		}
	}
}

func TestGetOrCreateEncryptionKey(t *testing.T) {
	tmpDir := t.TempDir()

	key1, err := getOrCreateEncryptionKey(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	if len(key1) != 32 {
		t.Errorf("Key length is %d, expected 32", len(key1))
	}

	// Second call loads the same key
	key2, err := getOrCreateEncryptionKey(tmpDir)
	if err != nil {
		t.Fatalf("Failed to load key: %v", err)
	}

	if string(key1) != string(key2) {
		t.Error("Loaded key doesn't match created key")
	}
}

func TestManagerListProfiles(t *testing.T) {
	tmpDir := t.TempDir()

	mgr := NewManagerWithOptions(tmpDir, ManagerOptions{ForcePlainFile: true})

	profiles, err := mgr.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}

	if len(profiles) != 0 {
		t.Errorf("Expected 0 profiles, got %d", len(profiles))
	}

	if err := mgr.storage.Save("profile1", []byte(`{"accessToken":"token1"}`)); err != nil {
		t.Fatalf("Failed to save credentials: %v", err)
	}
	if err := mgr.storage.Save("profile2", []byte(`{"accessToken":"token2"}`)); err != nil {
		t.Fatalf("Failed to save credentials: %v", err)
	}

	profiles, err = mgr.ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}

	if len(profiles) != 2 {
		t.Errorf("Expected 2 profiles, got %d", len(profiles))
	}

	profileMap := make(map[string]bool)
	for _, p := range profiles {
		profileMap[p] = true
	}

	if !profileMap["profile1"] || !profileMap["profile2"] {
		t.Errorf("Missing expected profiles. Got: %v", profiles)
	}
}
