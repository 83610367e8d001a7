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

package image

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"

	log "github.com/sirupsen/logrus"
)

// Extension of uncompressed image files.
const Extension = ".image"

//
func NewReader(r io.ReadCloser, compressor string) (*Reader, error) {

	log.WithField("compressor", compressor).Debug("image reader requested")

	var ret *Reader
	var err error

	switch compressor {

	case "gzip", "gz":
		ret, err = getGZipReader(r)

	case "zip":
		ret, err = getZipReader(r, false)

	case "7z":
		ret, err = getZipReader(r, true)

	case "":
		ret = &Reader{readCloser: r}
	}

	if err != nil {
		return nil, err
	}

	if ret == nil {
		return nil, fmt.Errorf("unsupported compressor: %s", compressor)
	}

	log.WithFields(log.Fields{
		"compressor": ret.compressor,
		"name":       ret.name}).Debug("image reader created")

	return ret, nil
}

// Reader reads an image from a possibly compressed stream. For archives
// with more than one entry, the first one is used.
type Reader struct {
	readCloser io.ReadCloser
	//
	name       string
	compressor string
}

//
func (r *Reader) Read(p []byte) (n int, err error) {
	return r.readCloser.Read(p)
}

//
func (r *Reader) Close() error {
	return r.readCloser.Close()
}

// Name of the image inside the archive, if the archive records it.
func (r *Reader) Name() string {
	return r.name
}

//
func (r *Reader) Compressor() string {
	return r.compressor
}

//
func getGZipReader(r io.ReadCloser) (*Reader, error) {

	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}

	ret := &Reader{readCloser: gzr, compressor: "gzip"}
	ret.name, _ = SplitNameCompressor(gzr.Name)

	return ret, nil
}

//
func getZipReader(r io.ReadCloser, zip7 bool) (*Reader, error) {

	var sponge bytes.Buffer
	size, err := io.Copy(&sponge, r)
	r.Close()
	if err != nil {
		return nil, err
	}

	ret := &Reader{}

	if zip7 {
		zr, err := sevenzip.NewReader(bytes.NewReader(sponge.Bytes()), size)
		if err != nil {
			return nil, err
		}
		if len(zr.File) == 0 {
			return nil, fmt.Errorf("empty 7-zip archive")
		}
		if len(zr.File) > 1 {
			log.Warn("7-zip archive has more than one entry, using first")
		}

		ret.name, _ = SplitNameCompressor(zr.File[0].Name)
		ret.compressor = "7z"
		if ret.readCloser, err = zr.File[0].Open(); err != nil {
			return nil, err
		}

	} else {
		zr, err := zip.NewReader(bytes.NewReader(sponge.Bytes()), size)
		if err != nil {
			return nil, err
		}
		if len(zr.File) == 0 {
			return nil, fmt.Errorf("empty zip archive")
		}
		if len(zr.File) > 1 {
			log.Warn("zip archive has more than one entry, using first")
		}

		ret.name, _ = SplitNameCompressor(zr.File[0].Name)
		ret.compressor = "zip"
		if ret.readCloser, err = zr.File[0].Open(); err != nil {
			return nil, err
		}
	}

	return ret, nil
}

/*
	SplitNameCompressor splits a file name such as 'lisa.image.7z' into the
	image name, here 'lisa.image', and the compressor, '7z'. The compressor
	is empty for plain images.
*/
func SplitNameCompressor(file string) (name, compressor string) {

	_, name = filepath.Split(file)

	for {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
		switch ext {
		case "gz", "gzip", "zip", "7z":
			if compressor == "" {
				compressor = ext
			}
			name = strings.TrimSuffix(name, filepath.Ext(name))
		default:
			return name, compressor
		}
	}
}

// IsImageFile reports whether file looks like an image, compressed or not.
func IsImageFile(file string) bool {
	name, _ := SplitNameCompressor(file)
	return strings.HasSuffix(strings.ToLower(name), Extension)
}

//
func openArchive(path, compressor string) (*Image, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r, err := NewReader(f, compressor)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error opening archive %s: %v", path, err)
	}
	defer r.Close()

	name := r.Name()
	if name == "" {
		name, _ = SplitNameCompressor(path)
	}
	return Load(r, name)
}
