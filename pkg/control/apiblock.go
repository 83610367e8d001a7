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
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

/*
	block sends the contents of a block of the image being served, as a hex
	dump, or as raw bytes with raw set. The block number can be given in
	decimal, or in hex with a 0x prefix.
*/
func (a *api) block(w http.ResponseWriter, req *http.Request) {

	n, err := strconv.ParseUint(mux.Vars(req)["block"], 0, 24)
	if err != nil {
		handleError(fmt.Errorf("invalid block number: %v", err),
			http.StatusUnprocessableEntity, w)
		return
	}

	data, err := a.daemon.GetBlock(uint32(n))
	if handleError(err, http.StatusUnprocessableEntity, w) {
		return
	}

	if isFlagSet(req, "raw") {
		sendReply(data, http.StatusOK, w)
		return
	}

	read, write := io.Pipe()

	go func() {
		fmt.Fprintf(write, "\nblock %06X\n\n", n)
		d := hex.Dumper(write)
		d.Write(data)
		d.Close()
		fmt.Fprintln(write)
		write.Close()
	}()

	sendStreamReply(read, http.StatusOK, w)
}
