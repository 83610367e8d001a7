/*
   Aphid - Apple parallel port hard drive emulator
   Copyright (c) 2022, The Aphid Authors

   This file is part of Aphid.

   Aphid is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Aphid is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Aphid. If not, see <http://www.gnu.org/licenses/>.
*/

package repo

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

//
func writeFile(t *testing.T, path, content string) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

//
func TestFileSource(t *testing.T) {

	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	writeFile(t, filepath.Join(repo, "games", "chess.image"), "chess")
	writeFile(t, filepath.Join(root, "secret.image"), "secret")

	src, err := NewFileSource(repo, "games/chess.image")
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil || string(data) != "chess" {
		t.Errorf("unexpected content: %q, %v", data, err)
	}

	// escaping paths are confined to the repository
	if _, err := NewFileSource(repo, "../secret.image"); err == nil {
		t.Error("path outside of repository accepted")
	}

	for _, p := range []string{"", "/", "/etc/passwd", "games"} {
		if _, err := NewFileSource(repo, p); err == nil {
			t.Errorf("invalid path %q accepted", p)
		}
	}

	if _, err := NewFileSource("", "games/chess.image"); err == nil {
		t.Error("missing repository not reported")
	}
}

//
func TestResolve(t *testing.T) {

	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "office", "lisa.image.gz"), "lisa")

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/images/web.image" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte("web"))
		}))
	defer srv.Close()

	tests := []struct {
		ref     string
		name    string
		content string
	}{
		{"repo://office/lisa.image.gz", "lisa.image.gz", "lisa"},
		{srv.URL + "/images/web.image", "web.image", "web"},
	}

	for _, tc := range tests {
		if !IsReference(tc.ref) {
			t.Errorf("%s not recognized as reference", tc.ref)
		}
		src, name, err := Resolve(tc.ref, repo)
		if err != nil {
			t.Errorf("%s: %v", tc.ref, err)
			continue
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil || string(data) != tc.content || name != tc.name {
			t.Errorf("%s: want %s/%q, got %s/%q, %v",
				tc.ref, tc.name, tc.content, name, data, err)
		}
	}

	for _, ref := range []string{
		srv.URL + "/missing.image",
		"repo://office/none.image",
		"ftp://host/x.image",
		"x.image",
	} {
		if _, _, err := Resolve(ref, repo); err == nil {
			t.Errorf("%s: no error", ref)
		}
	}

	if IsReference("plain.image") {
		t.Error("plain name taken for reference")
	}
}

//
func TestIndex(t *testing.T) {

	root := t.TempDir()
	repo := filepath.Join(root, "repo")
	base := filepath.Join(root, "index")

	writeFile(t, filepath.Join(repo, "games", "chess_master.image"), "x")
	writeFile(t, filepath.Join(repo, "office", "lisa-write.image.zip"), "x")
	writeFile(t, filepath.Join(repo, "office", "notes.txt"), "x")

	idx, err := NewIndex(base, repo)
	if err != nil {
		t.Fatal(err)
	}
	idx.backoff = 20 * time.Millisecond

	if err := idx.Start(); err != nil {
		t.Fatal(err)
	}
	defer idx.Stop()

	res, err := idx.Search("chess", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Hits) != 1 || res.Hits[0].Path != "games/chess_master.image" ||
		!res.Complete {
		t.Errorf("unexpected search result: %+v", res)
	}
	if !strings.Contains(res.String(), "repo://games/chess_master.image") {
		t.Errorf("unexpected rendering: %s", res)
	}

	if res, err = idx.Search("office", 0); err != nil || len(res.Hits) != 1 {
		t.Errorf("want only the image in office, got %+v, %v", res, err)
	}
	if res, err = idx.Search("notes", 0); err != nil || len(res.Hits) != 0 {
		t.Errorf("non image indexed: %+v, %v", res, err)
	}
	if _, err = idx.Search("  ", 0); err == nil {
		t.Error("empty search accepted")
	}

	// picked up by the watcher
	if err := os.Mkdir(filepath.Join(repo, "games", "new"), 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(repo, "games", "new", "go_board.image"), "x")

	deadline := time.Now().Add(10 * time.Second)
	for {
		res, err = idx.Search("board", 0)
		if err == nil && len(res.Hits) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("new image not indexed: %+v, %v", res, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := os.Remove(filepath.Join(repo, "games", "chess_master.image")); err != nil {
		t.Fatal(err)
	}

	deadline = time.Now().Add(10 * time.Second)
	for {
		res, err = idx.Search("chess", 0)
		if err == nil && len(res.Hits) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("removed image still indexed: %+v, %v", res, err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	idx.Stop()
	if _, err := idx.Search("board", 0); err == nil {
		t.Error("search on stopped index")
	}
}
