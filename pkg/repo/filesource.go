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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

/*
	NewFileSource opens the image at path within the repository directory
	repo. The path must not lead out of the repository.
*/
func NewFileSource(repo, path string) (*FileSource, error) {

	if repo == "" {
		return nil, fmt.Errorf("no image repository configured")
	}

	clean := filepath.Clean("/" + path)[1:]
	if clean == "" || strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("invalid repository path: %s", path)
	}

	file := filepath.Join(repo, clean)
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("not a file: %s", path)
	}

	return &FileSource{file: f, reader: bufio.NewReader(f)}, nil
}

// FileSource reads an image from the repository.
type FileSource struct {
	file   *os.File
	reader io.Reader
}

//
func (fs *FileSource) Read(p []byte) (n int, err error) {
	return fs.reader.Read(p)
}

//
func (fs *FileSource) Close() error {
	return fs.file.Close()
}
