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
	"bytes"
	"fmt"
	"net/http"

	"github.com/cameo-aphid/aphid/pkg/shmem"
)

//
func (a *api) status(w http.ResponseWriter, req *http.Request) {

	status := a.daemon.Status()

	if wantsJSON(req) {
		sendJSONReply(status, http.StatusOK, w)
		return
	}

	var buf bytes.Buffer
	status.Emit(&buf)
	sendReply(buf.Bytes(), http.StatusOK, w)
}

/*
	shmem sends a decoded snapshot of the shared memory region. With raw set,
	the snapshot is sent as is, for clients that decode it themselves.
*/
func (a *api) shmem(w http.ResponseWriter, req *http.Request) {

	if a.region == nil {
		handleError(fmt.Errorf("shared memory not available"),
			http.StatusServiceUnavailable, w)
		return
	}

	raw := a.region.Snapshot()

	if isFlagSet(req, "raw") {
		sendReply(raw, http.StatusOK, w)
		return
	}

	view, err := shmem.Parse(raw)
	if handleError(err, http.StatusInternalServerError, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(view, http.StatusOK, w)
		return
	}

	var buf bytes.Buffer
	view.Emit(&buf)
	sendReply(buf.Bytes(), http.StatusOK, w)
}
