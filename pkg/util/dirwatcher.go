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

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

/*
	NewDirWatcher creates a watcher for the directory tree rooted in dir.
	Directories created in the tree later on are watched as well. Nothing is
	reported before Start has been called.
*/
func NewDirWatcher(dir string) (*DirWatcher, error) {

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dw := &DirWatcher{watcher: w, done: make(chan struct{})}

	if err := filepath.Walk(dir,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return dw.watch(path)
			}
			return nil
		}); err != nil {
		w.Close()
		return nil, fmt.Errorf("error walking directory '%s': %v", dir, err)
	}

	return dw, nil
}

//
type DirWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	started bool
}

/*
	Start passes every change in the watched tree to handler. Once the tree
	has been quiet for backoff after a change, flush is called. Both are
	called from the same go routine, so they need not be thread safe.
*/
func (dw *DirWatcher) Start(backoff time.Duration,
	handler func(fsnotify.Event) error, flush func() error) error {

	if dw.watcher == nil {
		return fmt.Errorf("directory watcher stopped")
	}
	if dw.started {
		return fmt.Errorf("directory watcher already started")
	}
	dw.started = true

	go func() {

		defer close(dw.done)

		var quiet <-chan time.Time

		for {
			select {

			case evt, ok := <-dw.watcher.Events:
				if !ok {
					log.Debug("directory watcher stopped")
					return
				}
				if evt.Op&fsnotify.Create != 0 {
					if info, err := os.Lstat(evt.Name); err == nil && info.IsDir() {
						dw.watch(evt.Name)
					}
				}
				if err := handler(evt); err != nil {
					log.WithField("path", evt.Name).Errorf(
						"error handling change: %v", err)
				}
				quiet = time.After(backoff)

			case err, ok := <-dw.watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("directory watcher error: %v", err)

			case <-quiet:
				quiet = nil
				if err := flush(); err != nil {
					log.Errorf("error flushing: %v", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the watcher, and waits until the watching routine has ended.
// A stopped watcher can not be started again.
func (dw *DirWatcher) Stop() {

	if dw.watcher == nil {
		return
	}

	if err := dw.watcher.Close(); err != nil {
		log.Errorf("could not close directory watcher: %v", err)
	}
	if dw.started {
		<-dw.done
	}
	dw.watcher = nil
}

//
func (dw *DirWatcher) watch(path string) error {
	if err := dw.watcher.Add(path); err != nil {
		return fmt.Errorf("error watching directory '%s': %v", path, err)
	}
	log.WithField("path", path).Debug("watching directory")
	return nil
}
