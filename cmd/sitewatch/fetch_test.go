package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func readStore(t *testing.T, path string) map[string][]map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read store: %v", err)
	}
	var pages map[string][]map[string]any
	if err := json.Unmarshal(data, &pages); err != nil {
		t.Fatalf("store is not valid JSON: %v", err)
	}
	return pages
}

func TestFetch_Configured(t *testing.T) {
	a := statusServer(t, http.StatusOK)
	b := statusServer(t, http.StatusNotFound)
	env := newTestEnv(t, a.URL, b.URL)

	out, err := executeCmd(t, nil, env.args("fetch", "--show-result")...)
	if err != nil {
		t.Fatalf("fetch command error = %v", err)
	}

	for _, phrase := range []string{
		a.URL + ": 200",
		b.URL + ": 404",
		"Successfully fetched statuses for: " + a.URL + ", " + b.URL,
	} {
		if !strings.Contains(out, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, out)
		}
	}

	pages := readStore(t, env.storePath)
	if len(pages["1"]) != 2 {
		t.Errorf("page 1 has %d records, want 2", len(pages["1"]))
	}
}

func TestFetch_WithoutShowResult(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	env := newTestEnv(t, srv.URL)

	out, err := executeCmd(t, nil, env.args("fetch")...)
	if err != nil {
		t.Fatalf("fetch command error = %v", err)
	}
	if strings.Contains(out, srv.URL+": 200") {
		t.Errorf("per-URL status printed without --show-result\nGot: %s", out)
	}
}

func TestFetch_ExplicitURLsAndSubset(t *testing.T) {
	a := statusServer(t, http.StatusOK)
	b := statusServer(t, http.StatusOK)
	env := newTestEnv(t)

	out, err := executeCmd(t, nil, env.args("fetch", "--subset=1", a.URL, b.URL)...)
	if err != nil {
		t.Fatalf("fetch command error = %v", err)
	}
	if !strings.Contains(out, "Successfully fetched statuses for: "+a.URL+"\n") {
		t.Errorf("expected only the first URL\nGot: %s", out)
	}
}

func TestFetch_NoURLs(t *testing.T) {
	env := newTestEnv(t)

	out, err := executeCmd(t, nil, env.args("fetch")...)
	if err != nil {
		t.Fatalf("fetch command error = %v", err)
	}
	if !strings.Contains(out, "No URLs configured in the datastore.") {
		t.Errorf("output = %q", out)
	}
}

func TestFetch_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	refused := srv.URL
	srv.Close()
	env := newTestEnv(t, "www.example.com", refused)

	out, err := executeCmd(t, nil, env.args("fetch")...)
	if err != nil {
		t.Fatalf("fetch command error = %v", err)
	}
	for _, phrase := range []string{
		"Error: Invalid URL: www.example.com",
		"No valid URLs provided or fetched successfully. Example of a valid URL: https://www.example.com",
	} {
		if !strings.Contains(out, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, out)
		}
	}
	if _, err := os.Stat(env.storePath); !os.IsNotExist(err) {
		t.Errorf("store should not be created, stat err = %v", err)
	}
}

func TestFetch_NegativeSubset(t *testing.T) {
	env := newTestEnv(t)
	if _, err := executeCmd(t, nil, env.args("fetch", "--subset=-1")...); err == nil {
		t.Fatal("expected error for negative subset, got nil")
	}
}

func TestFetch_CorruptStoreIsAnError(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	env := newTestEnv(t, srv.URL)
	if err := os.WriteFile(env.storePath, []byte("{broken"), 0644); err != nil {
		t.Fatalf("failed to write store: %v", err)
	}

	_, err := executeCmd(t, nil, env.args("fetch")...)
	if err == nil {
		t.Fatal("expected error when appending to a corrupt store, got nil")
	}

	data, _ := os.ReadFile(env.storePath)
	if string(data) != "{broken" {
		t.Errorf("corrupt store was overwritten: %q", data)
	}
}
