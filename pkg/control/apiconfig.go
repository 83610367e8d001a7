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

// getConfig sends the value of the requested setting, or of all settings
// if no item was given.
func (a *api) getConfig(w http.ResponseWriter, req *http.Request) {

	item := getArg(req, "item")

	if item == "" {
		conf := a.daemon.Settings()
		if wantsJSON(req) {
			sendJSONReply(conf, http.StatusOK, w)
			return
		}
		var items []string
		for k := range conf {
			items = append(items, k)
		}
		sort.Strings(items)
		var sb strings.Builder
		for _, k := range items {
			sb.WriteString(fmt.Sprintf("%-12s%v\n", k, conf[k]))
		}
		sendReply([]byte(sb.String()), http.StatusOK, w)
		return
	}

	conf, err := a.daemon.GetConfig(item)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if wantsJSON(req) {
		sendJSONReply(map[string]interface{}{item: conf}, http.StatusOK, w)
		return
	}

	sendReply([]byte(fmt.Sprintf("%v", conf)), http.StatusOK, w)
}

//
func (a *api) setConfig(w http.ResponseWriter, req *http.Request) {

	item := getArg(req, "item")

	arg1, err := getIntArg(req, "arg1", -1)
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}
	if arg1 < 0 || arg1 > 255 {
		handleError(fmt.Errorf("arg1 missing or out of range"),
			http.StatusUnprocessableEntity, w)
		return
	}

	arg2, err := getIntArg(req, "arg2", 0)
	if err != nil {
		arg2 = 0
	}

	if handleError(a.daemon.SetConfig(item, byte(arg1), byte(arg2)),
		http.StatusUnprocessableEntity, w) {
		return
	}

	sendReply([]byte(fmt.Sprintf("configured %s", item)), http.StatusOK, w)
}
