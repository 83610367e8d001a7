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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/image"
)

/*
	Import stores the image read from r as name in the image directory, so
	that it can be loaded. An existing image is only replaced with force set,
	and never while it is being served.
*/
func (d *Daemon) Import(name string, r io.Reader, force bool) error {

	if dir, file := filepath.Split(name); dir != "" ||
		!strings.HasSuffix(file, image.Extension) {
		return fmt.Errorf("invalid image name '%s', must be a plain file "+
			"name ending in %s", name, image.Extension)
	}

	path := filepath.Join(d.imageDir(), name)

	d.mutex.Lock()
	inUse := d.image != nil && d.image.Path() == path
	d.mutex.Unlock()
	if inUse {
		return fmt.Errorf("image %s is in use", name)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("image %s already exists", name)
		}
		return err
	}

	n, err := io.Copy(f, io.LimitReader(r, 2*image.SizeProFile10+1))
	if err == nil && n > 2*image.SizeProFile10 {
		err = fmt.Errorf("image too large")
	}
	if err == nil {
		err = f.Sync()
	}
	if e := f.Close(); err == nil {
		err = e
	}

	if err != nil {
		os.Remove(path)
		return fmt.Errorf("error importing image %s: %v", name, err)
	}

	log.WithFields(log.Fields{"image": name, "size": n}).Info("IMPORT")
	return nil
}

// Images lists the images in the image directory that can be loaded.
func (d *Daemon) Images() ([]string, error) {

	entries, err := os.ReadDir(d.imageDir())
	if err != nil {
		return nil, fmt.Errorf("error listing images: %v", err)
	}

	ret := []string{}
	for _, e := range entries {
		if _, ok := d.resolveImage(e.Name()); ok {
			ret = append(ret, e.Name())
		}
	}
	return ret, nil
}
