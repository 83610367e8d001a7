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

package run

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cameo-aphid/aphid/pkg/image"
)

//
func NewDump() *Dump {

	d := &Dump{}
	d.Runner = *NewRunner(
		"dump -b|--block {block} [-i|--input {image}] [-a|--address {address}]",
		"dump block from image file or daemon",
		`
Use the dump command to output a hex dump of a block, either from an image file,
or from the image the daemon currently serves. Block numbers can be given in
decimal, or in hex with a 0x prefix.`,
		"", runnerHelpEpilogue, d.Run)

	d.AddBaseSettings()
	d.AddSetting(&d.Input, "input", "i", "", "", "image file", false)
	d.AddSetting(&d.Block, "block", "b", "", "", "block to dump", true)

	return d
}

//
type Dump struct {
	Runner
	//
	Block string
	Input string
}

//
func (d *Dump) Run() error {

	if err := d.ParseSettings(); err != nil {
		return err
	}

	block, err := parseBlock(d.Block)
	if err != nil {
		return err
	}

	var data []byte

	if d.Input != "" {
		img, err := image.Open(d.Input, false)
		if err != nil {
			return err
		}
		defer img.Close()
		if data, err = img.Get(block); err != nil {
			return err
		}

	} else {
		resp, err := d.apiCall("GET", fmt.Sprintf("/block/%d?raw", block),
			false, nil)
		if err != nil {
			return err
		}
		defer resp.Close()
		if data, err = io.ReadAll(resp); err != nil {
			return err
		}
	}

	fmt.Printf("\nblock %06X\n\n", block)
	dumper := hex.Dumper(os.Stdout)
	dumper.Write(data)
	dumper.Close()
	fmt.Println()

	return nil
}
