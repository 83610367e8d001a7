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
	"net/http"
	"runtime"

	"github.com/cameo-aphid/aphid/pkg/daemon"
	"github.com/cameo-aphid/aphid/pkg/util"
)

//
type Version struct {
	Daemon    string `json:"daemon"`
	Signature string `json:"signature"`
	Platform  string `json:"platform"`
}

//
func (v *Version) String() string {
	return fmt.Sprintf("daemon:     %s\nsignature:  %s\nplatform:   %s\n",
		v.Daemon, v.Signature, v.Platform)
}

//
func (a *api) version(w http.ResponseWriter, req *http.Request) {

	ver := &Version{
		Daemon:    util.AphidVersion,
		Signature: daemon.Signature,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if wantsJSON(req) {
		sendJSONReply(ver, http.StatusOK, w)
	} else {
		sendReply([]byte(ver.String()), http.StatusOK, w)
	}
}
