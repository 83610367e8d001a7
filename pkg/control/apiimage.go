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

package control

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cameo-aphid/aphid/pkg/image"
	"github.com/cameo-aphid/aphid/pkg/repo"
)

/*
	load switches the daemon to another image from the image directory. When
	the request references an image in the repository or on the web, or
	carries an image in its body, that image is first imported into the
	image directory. Compressed images are unpacked on import.

		name		name of the image in the image directory
		ref			repository or web reference
		compressor	compressor of an uploaded image, if any
		force		replace an existing image on import
*/
func (a *api) load(w http.ResponseWriter, req *http.Request) {

	name := getArg(req, "name")

	ref, err := getRef(req)
	if handleError(err, http.StatusNotAcceptable, w) {
		return
	}

	if ref != "" || req.ContentLength != 0 {
		if name, err = a.importImage(w, req, ref, name); err != nil {
			return
		}
	}

	if name == "" {
		handleError(fmt.Errorf("no image name"), http.StatusUnprocessableEntity, w)
		return
	}

	if handleError(a.daemon.Load(name), http.StatusUnprocessableEntity, w) {
		return
	}

	sendReply([]byte(fmt.Sprintf("loading image %s", name)), http.StatusOK, w)
}

// importImage imports the referenced or uploaded image, and returns the
// name under which it was stored. Errors have already been sent to the
// client when an error is returned.
func (a *api) importImage(w http.ResponseWriter, req *http.Request,
	ref, name string) (string, error) {

	var in io.ReadCloser
	var file string
	var err error

	if ref != "" {
		if in, file, err = repo.Resolve(ref, a.repository); err != nil {
			handleError(err, http.StatusNotAcceptable, w)
			return "", err
		}
	} else {
		in = http.MaxBytesReader(w, req.Body, repo.MaxDownload)
		file = name
	}
	defer in.Close()

	compressor := getArg(req, "compressor")
	if compressor == "" {
		_, compressor = image.SplitNameCompressor(file)
	}

	rd, err := image.NewReader(in, compressor)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return "", err
	}
	defer rd.Close()

	if name == "" {
		name = rd.Name()
	}
	if name == "" {
		name = file
	}
	if name, _ = image.SplitNameCompressor(name); name != "" &&
		!strings.HasSuffix(name, image.Extension) {
		name += image.Extension
	}

	err = a.daemon.Import(name, rd, isFlagSet(req, "force"))
	if err != nil && strings.Contains(err.Error(), "already exists") {
		handleError(err, http.StatusConflict, w)
		return "", err
	}
	if err != nil && strings.Contains(err.Error(), "in use") {
		handleError(err, http.StatusLocked, w)
		return "", err
	}
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return "", err
	}

	return name, nil
}

//
func (a *api) images(w http.ResponseWriter, req *http.Request) {

	images, err := a.daemon.Images()
	if handleError(err, http.StatusInternalServerError, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(images, http.StatusOK, w)
		return
	}

	var sb strings.Builder
	sb.WriteString("\n")
	for _, i := range images {
		sb.WriteString(i + "\n")
	}
	sb.WriteString(fmt.Sprintf("\n%d images\n", len(images)))
	sendReply([]byte(sb.String()), http.StatusOK, w)
}
