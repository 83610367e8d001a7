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

/*
	Package image handles ProFile disk images: flat files of 532 byte sectors,
	with no header and no structure beyond that. A 5 MB ProFile image has
	9728 sectors, a ProFile-10 image twice as many. Images of any other size
	are served as well.
*/
package image

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/shmem"
)

//
const (
	SectorSize    = shmem.SectorSize
	SizeProFile   = 5175296
	SizeProFile10 = 10350592
)

// Create creates a blank 5 MB ProFile image at path. An existing file is
// never overwritten.
func Create(path string) error {

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf(
				"file %s already exists, won't overwrite it with a new image",
				path)
		}
		return err
	}
	defer f.Close()

	if err := f.Truncate(SizeProFile); err != nil {
		return fmt.Errorf("error sizing new image: %v", err)
	}

	log.WithField("path", path).Info("created blank ProFile image")
	return f.Sync()
}

/*
	Open opens the image at path for reading and writing. With create set,
	a blank image is created first, which fails if path already exists.
	Compressed images (gzip, zip, 7z) are loaded into memory and can not be
	written back.
*/
func Open(path string, create bool) (*Image, error) {

	if create {
		if err := Create(path); err != nil {
			return nil, err
		}
	}

	if _, comp := SplitNameCompressor(path); comp != "" {
		return openArchive(path, comp)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"path": path,
		"size": info.Size(),
	}).Info("opened image")

	return &Image{
		name: filepath.Base(path),
		path: path,
		file: f,
		size: info.Size(),
	}, nil
}

// Load reads a complete image from r into memory. The image is read-only.
func Load(r io.Reader, name string) (*Image, error) {

	data, err := io.ReadAll(io.LimitReader(r, 2*SizeProFile10+1))
	if err != nil {
		return nil, fmt.Errorf("error loading image: %v", err)
	}
	if len(data) > 2*SizeProFile10 {
		return nil, fmt.Errorf("image too large")
	}

	log.WithFields(log.Fields{
		"name": name,
		"size": len(data),
	}).Info("loaded image into memory")

	return &Image{name: name, data: data, size: int64(len(data))}, nil
}

/*
	Image is a disk image. Sector indices beyond the end of the image are not
	an error: reading them yields zeros, and writes to them are dropped, the
	way the Apple expects of a drive with fewer blocks than asked for.
*/
type Image struct {
	name string
	path string
	file *os.File
	data []byte
	size int64

	mutex sync.RWMutex
}

//
func (i *Image) Name() string {
	return i.name
}

// Path is where the image lives on disk, empty for in-memory images.
func (i *Image) Path() string {
	return i.path
}

//
func (i *Image) Size() int64 {
	return i.size
}

//
func (i *Image) Sectors() int {
	return int(i.size / SectorSize)
}

//
func (i *Image) ReadOnly() bool {
	return i.file == nil
}

// Kind describes the drive this image makes the emulator pose as.
func (i *Image) Kind() string {
	if i.size == SizeProFile10 {
		return "ProFile-10"
	}
	return "ProFile"
}

//
func (i *Image) inRange(sector uint32) (int64, bool) {
	start := int64(sector) * SectorSize
	return start, start+SectorSize <= i.size
}

// Get returns the contents of sector.
func (i *Image) Get(sector uint32) ([]byte, error) {

	ret := make([]byte, SectorSize)
	start, ok := i.inRange(sector)
	if !ok {
		return ret, nil
	}

	i.mutex.RLock()
	defer i.mutex.RUnlock()

	if i.file == nil {
		copy(ret, i.data[start:])
		return ret, nil
	}

	if _, err := i.file.ReadAt(ret, start); err != nil {
		return nil, fmt.Errorf("error reading sector %06X: %v", sector, err)
	}
	return ret, nil
}

// Put stores data in sector. It reports whether the image was changed.
func (i *Image) Put(sector uint32, data []byte) (bool, error) {

	if len(data) != SectorSize {
		return false, fmt.Errorf(
			"sector data for sector %06X is %d bytes, should be %d",
			sector, len(data), SectorSize)
	}

	start, ok := i.inRange(sector)
	if !ok {
		return false, nil
	}

	if i.file == nil {
		log.WithField("sector", fmt.Sprintf("%06X", sector)).Warn(
			"dropping write to read-only image")
		return false, nil
	}

	i.mutex.Lock()
	defer i.mutex.Unlock()

	if _, err := i.file.WriteAt(data, start); err != nil {
		return false, fmt.Errorf("error writing sector %06X: %v", sector, err)
	}
	return true, nil
}

// Sync commits written sectors to the storage device.
func (i *Image) Sync() error {
	if i.file == nil {
		return nil
	}
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.file.Sync()
}

// Close syncs and closes the image.
func (i *Image) Close() error {

	if i.file == nil {
		return nil
	}

	err := i.Sync()
	if e := i.file.Close(); err == nil {
		err = e
	}

	log.WithField("name", i.name).Info("image closed")
	return err
}
