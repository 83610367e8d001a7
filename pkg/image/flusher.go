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

package image

import (
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultFlushDelay is the minimum time between two flushes.
const DefaultFlushDelay = 4 * time.Second

// NewFlusher creates a flusher for img. It does nothing until started.
func NewFlusher(img *Image, delay time.Duration) *Flusher {
	return &Flusher{
		image: img,
		delay: delay,
		dirty: make(chan struct{}, 1),
		cease: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

/*
	Flusher syncs an image to its storage device in the background, at most
	once per delay, to keep wear on flash media down. Writers call Dirty after
	changing the image. Stopping the flusher does not flush; closing the image
	does that.
*/
type Flusher struct {
	image   *Image
	delay   time.Duration
	dirty   chan struct{}
	cease   chan struct{}
	done    chan struct{}
	flushes atomic.Uint32
}

//
func (f *Flusher) Start() {

	go func() {

		defer close(f.done)

		for {
			select {
			case <-f.cease:
				return
			case <-f.dirty:
			}

			if err := f.image.Sync(); err != nil {
				log.Errorf("error flushing image: %v", err)
			} else {
				log.WithField("name", f.image.Name()).Debug("image flushed")
			}
			f.flushes.Add(1)

			select {
			case <-f.cease:
				return
			case <-time.After(f.delay):
			}
		}
	}()
}

// Dirty schedules a flush. It never blocks.
func (f *Flusher) Dirty() {
	select {
	case f.dirty <- struct{}{}:
	default:
	}
}

// Flushes is the number of flushes done so far.
func (f *Flusher) Flushes() int {
	return int(f.flushes.Load())
}

// Stop stops the flusher and waits for it to finish.
func (f *Flusher) Stop() {
	close(f.cease)
	<-f.done
}
