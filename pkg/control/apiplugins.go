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
	"sort"
	"strings"
)

// plugins lists the plugins loaded for the current image, by block.
func (a *api) plugins(w http.ResponseWriter, req *http.Request) {

	plugins := a.daemon.Status().Plugins
	if plugins == nil {
		plugins = map[string]string{}
	}

	if wantsJSON(req) {
		sendJSONReply(plugins, http.StatusOK, w)
		return
	}

	if len(plugins) == 0 {
		sendReply([]byte("no plugins loaded"), http.StatusOK, w)
		return
	}

	var blocks []string
	for b := range plugins {
		blocks = append(blocks, b)
	}
	sort.Strings(blocks)

	var sb strings.Builder
	for _, b := range blocks {
		sb.WriteString(fmt.Sprintf("%s  %s\n", b, plugins[b]))
	}
	sendReply([]byte(sb.String()), http.StatusOK, w)
}
