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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/repo"
)

//
func getArg(req *http.Request, arg string) string {
	return req.URL.Query().Get(arg)
}

//
func getIntArg(req *http.Request, arg string, def int) (int, error) {
	v := getArg(req, arg)
	if v == "" {
		return def, nil
	}
	ret, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid value for %s: %v", arg, err)
	}
	return ret, nil
}

//
func isFlagSet(req *http.Request, flag string) bool {
	v, ok := req.URL.Query()[flag]
	return ok && (len(v) == 0 || v[0] == "" || v[0] == "true")
}

// getRef returns the image reference given in the request, if any. A
// reference must use one of the repository's schemes.
func getRef(req *http.Request) (string, error) {
	ref := getArg(req, "ref")
	if ref == "" {
		return "", nil
	}
	if !repo.IsReference(ref) {
		return ref, fmt.Errorf("not a valid reference: %s", ref)
	}
	return ref, nil
}

//
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// handleError sends err with status code to the client, and reports whether
// there was an error at all.
func handleError(e error, statusCode int, w http.ResponseWriter) bool {

	if e == nil {
		return false
	}

	msg := fmt.Sprintf("%v", e)
	log.Errorf("API call failed: %s", msg)

	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(msg)); err != nil {
		log.Errorf("problem writing error: %v", err)
	}
	return true
}

//
func sendReply(body []byte, statusCode int, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Errorf("problem sending reply: %v", err)
	}
}

//
func sendJSONReply(obj interface{}, statusCode int, w http.ResponseWriter) {

	body, err := json.Marshal(obj)
	if handleError(err, http.StatusInternalServerError, w) {
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		log.Errorf("problem sending JSON reply: %v", err)
	}
}

//
func sendStreamReply(r io.ReadCloser, statusCode int, w http.ResponseWriter) {

	defer r.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(statusCode)
	if _, err := io.Copy(w, r); err != nil {
		log.Errorf("problem sending stream reply: %v", err)
	}
}
