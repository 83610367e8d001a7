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

package daemon

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/image"
)

// conclusion commands
const (
	concludeHalt  = "HALT"
	concludeImage = "IMAGE:"
)

/*
	conclude processes the data of the write that ended a session. The text
	up to the first NUL byte is the instruction:

		HALT			stop serving
		IMAGE:<file>	continue with image <file> from the image directory

	<file> must be a plain file name ending in '.image', and the file must
	exist. Anything else continues with the current image.
*/
func (d *Daemon) conclude(current string, conclusion []byte) (next string,
	halt bool) {

	if ix := bytes.IndexByte(conclusion, 0); ix >= 0 {
		conclusion = conclusion[:ix]
	}
	text := string(conclusion)

	log.WithField("data", text).Info("CONCLUDE")

	switch {

	case text == concludeHalt:
		return current, true

	case strings.HasPrefix(text, concludeImage):
		if path, ok := d.resolveImage(text[len(concludeImage):]); ok {
			return path, false
		}
		log.WithField("image", text[len(concludeImage):]).Warn(
			"not switching to unusable image")
	}

	return current, false
}

// resolveImage locates the image file name in the image directory.
func (d *Daemon) resolveImage(name string) (string, bool) {

	if dir, file := filepath.Split(name); dir != "" || file == "" ||
		!strings.HasSuffix(file, image.Extension) {
		return "", false
	}

	path := filepath.Join(d.imageDir(), name)
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}
