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
	Package repo maintains a searchable index of the disk images in an image
	repository directory, and resolves references to images, either in the
	repository or on the web.
*/
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/image"
	"github.com/cameo-aphid/aphid/pkg/util"
)

// characters that separate words in image names
const replaceChars = "`~!@#$%^&*_-+=()[]{}|;:',.<>?/"

var nameCleaner *strings.Replacer

//
func init() {
	rep := make([]string, 2*len(replaceChars))
	for ix, c := range replaceChars {
		rep[ix*2] = string(c)
		rep[ix*2+1] = " "
	}
	nameCleaner = strings.NewReplacer(rep...)
}

// WatchBackoff is how long the repository has to be quiet before pending
// index changes are committed.
const WatchBackoff = 5 * time.Second

// batchLimit is the number of index changes collected before committing.
const batchLimit = 100

/*
	NewIndex opens the index stored at base for the image repository repo,
	or creates it if there is none yet. The index is not usable before it has
	been started.
*/
func NewIndex(base, repo string) (*Index, error) {

	var err error
	i := &Index{backoff: WatchBackoff}

	if i.base, err = filepath.Abs(base); err != nil {
		return nil, err
	}
	if i.repo, err = filepath.Abs(repo); err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{"base": i.base, "repo": i.repo})

	if _, err := os.Stat(i.base); os.IsNotExist(err) {
		logger.Info("creating new index")
		if i.index, err = bleve.New(i.base, bleve.NewIndexMapping()); err != nil {
			return nil, fmt.Errorf("cannot create index: %v", err)
		}
		i.empty = true

	} else {
		logger.Info("opening index")
		if i.index, err = bleve.Open(i.base); err != nil {
			return nil, fmt.Errorf("cannot open index: %v", err)
		}
	}

	i.batch = i.index.NewBatch()
	return i, nil
}

// Entry is what gets indexed for each image.
type Entry struct {
	Name       string `json:"name"`
	Compressor string `json:"compressor"`
	Size       int64  `json:"size"`
}

/*
	Index is a full text index of image names in the repository. After the
	initial update, it follows changes in the repository via a directory
	watcher. Changes are batched, and committed when the batch is full, or
	the repository has been quiet for a while.
*/
type Index struct {
	base    string
	repo    string
	backoff time.Duration
	//
	index   bleve.Index
	empty   bool
	watcher *util.DirWatcher
	//
	batch      *bleve.Batch
	batchCount int
	mutex      sync.Mutex
}

// Repo is the repository directory this index covers.
func (i *Index) Repo() string {
	return i.repo
}

//
func (i *Index) Start() error {

	start := time.Now()
	if err := i.prune(); err != nil {
		return fmt.Errorf("error pruning index: %v", err)
	}
	log.WithField("duration", time.Since(start)).Info("index pruned")

	start = time.Now()
	if err := i.update(); err != nil {
		return fmt.Errorf("error updating index: %v", err)
	}
	log.WithField("duration", time.Since(start)).Info("index updated")

	if err := i.commit(); err != nil {
		return err
	}

	var err error
	if i.watcher, err = util.NewDirWatcher(i.repo); err != nil {
		return fmt.Errorf("error creating repo watcher: %v", err)
	}
	if err := i.watcher.Start(i.backoff, i.watchEvent, i.commit); err != nil {
		return fmt.Errorf("error starting repo watcher: %v", err)
	}

	log.Info("index ready")
	return nil
}

//
func (i *Index) Stop() {

	if i.watcher != nil {
		i.watcher.Stop()
		i.watcher = nil
	}

	if i.index != nil {
		if err := i.commit(); err != nil {
			log.Errorf("error committing index on stop: %v", err)
		}
		i.index.Close()
		i.index = nil
	}
}

// prune removes entries of images that are gone from the repository.
func (i *Index) prune() error {

	if i.empty {
		return nil
	}

	ix, err := i.index.Advanced()
	if err != nil {
		return err
	}

	rd, err := ix.Reader()
	if err != nil {
		return err
	}
	defer rd.Close()

	docs, err := rd.DocIDReaderAll()
	if err != nil {
		return err
	}
	defer docs.Close()

	for {
		d, err := docs.Next()
		if err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		id, err := rd.ExternalID(d)
		if err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(i.repo, id)); os.IsNotExist(err) {
			i.removeEntry(id)
		}
	}
}

// update adds all images changed since the index was last written.
func (i *Index) update() error {

	var lastMod time.Time
	if !i.empty {
		if store, err := os.Stat(filepath.Join(i.base, "store")); err == nil {
			lastMod = store.ModTime()
		}
	}
	i.empty = false

	return filepath.Walk(i.repo,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if path == i.base {
				return filepath.SkipDir
			}
			if !info.IsDir() && info.ModTime().After(lastMod) {
				i.addEntry(i.makeRelative(path), info.Size())
			}
			return nil
		})
}

//
func (i *Index) watchEvent(evt fsnotify.Event) error {

	rel := i.makeRelative(evt.Name)

	switch {

	case evt.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if info, err := os.Stat(evt.Name); err != nil {
			return fmt.Errorf("cannot add new entry: %v", err)
		} else if !info.IsDir() {
			return i.addEntry(rel, info.Size())
		}

	case evt.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
		return i.removeEntry(rel)
	}

	return nil
}

//
func (i *Index) addEntry(path string, size int64) error {

	if !image.IsImageFile(path) {
		return nil
	}

	name, comp := image.SplitNameCompressor(path)
	name = filepath.Join(filepath.Dir(path),
		name[:len(name)-len(image.Extension)])
	entry := Entry{
		Name:       nameCleaner.Replace(name),
		Compressor: comp,
		Size:       size,
	}

	log.WithField("image", path).Debug("adding image to index")

	i.mutex.Lock()
	defer i.mutex.Unlock()

	if err := i.batch.Index(path, entry); err != nil {
		return fmt.Errorf("failed to batch entry add: %v", err)
	}
	return i.batched()
}

//
func (i *Index) removeEntry(path string) error {

	log.WithField("image", path).Debug("removing image from index")

	i.mutex.Lock()
	defer i.mutex.Unlock()

	i.batch.Delete(path)
	return i.batched()
}

// batched commits the batch once it is full. Caller holds the mutex.
func (i *Index) batched() error {
	if i.batchCount++; i.batchCount > batchLimit {
		return i.flush()
	}
	return nil
}

// commit commits pending changes.
func (i *Index) commit() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.flush()
}

//
func (i *Index) flush() error {

	if i.batch.Size() == 0 {
		return nil
	}

	log.WithField("changes", i.batch.Size()).Debug("committing index changes")

	if err := i.index.Batch(i.batch); err != nil {
		return fmt.Errorf("failed to execute index batch: %v", err)
	}
	i.batch = i.index.NewBatch()
	i.batchCount = 0
	return nil
}

//
func (i *Index) makeRelative(path string) string {
	if rel, err := filepath.Rel(i.repo, path); err == nil {
		return rel
	}
	return path
}
