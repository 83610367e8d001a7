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
	Package daemon is the supervisor. It owns the disk image, waits for the
	control core to forward ProFile commands, and moves sector data between
	the image and the control core's buffers through the message channel.
*/
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/image"
	"github.com/cameo-aphid/aphid/pkg/util"
)

// Config holds the supervisor settings.
type Config struct {
	// Image is the path of the image to start with.
	Image string
	// Create creates a blank image at Image first. An existing file is
	// never overwritten.
	Create bool
	// ImageDir is where images to switch to are looked up. Defaults to the
	// directory of Image.
	ImageDir string
	// PluginDir is where plugin scripts are loaded from. Defaults to
	// ImageDir.
	PluginDir string
	// FlushDelay is the minimum time between two image flushes.
	FlushDelay time.Duration
	// ReadDelay is how long to wait for sector data from the control core.
	ReadDelay time.Duration
	// Verify checks sectors handed to the control core via checksum.
	Verify bool
}

// settings that can be changed at runtime
const (
	SettingVerify     = "verify"
	SettingFlushDelay = "flushdelay"
)

//
type stats struct {
	sessions atomic.Uint32
	reads    atomic.Uint32
	writes   atomic.Uint32
	unknown  atomic.Uint32
	failed   atomic.Uint32
}

//
func NewDaemon(conn channel.Conn, cfg Config) *Daemon {

	if cfg.ImageDir == "" {
		cfg.ImageDir = filepath.Dir(cfg.Image)
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = cfg.ImageDir
	}
	if cfg.FlushDelay == 0 {
		cfg.FlushDelay = image.DefaultFlushDelay
	}
	if cfg.ReadDelay == 0 {
		cfg.ReadDelay = DefaultReadDelay
	}

	d := &Daemon{
		config: cfg,
		settings: map[string]*util.Setting{
			SettingVerify: util.NewSetting(SettingVerify, cfg.Verify),
			SettingFlushDelay: util.NewSetting(SettingFlushDelay,
				int(cfg.FlushDelay/time.Second)),
		},
		state: StateStarting,
	}
	d.conduit = newConduit(conn, cfg.ReadDelay, d.settings[SettingVerify])

	return d
}

/*
	Daemon serves one image at a time. A session with an image lasts until
	the host concludes it, or the image is switched via Load. The host can
	conclude a session by halting the daemon, or by switching to another
	image.
*/
type Daemon struct {
	conduit  *conduit
	config   Config
	settings map[string]*util.Setting

	// owned by the serving routine; changed under mutex so that status
	// queries can look at them
	image      *image.Image
	flusher    *image.Flusher
	plugins    Plugins
	spareTable []byte
	lastData   []byte

	stats stats

	mutex       sync.Mutex
	state       string
	lastCommand string
	next        string
	interrupt   context.CancelFunc
}

/*
	Serve greets the control core, then serves images until halted by the
	host, or until ctx is done. It returns nil in both of these cases.
*/
func (d *Daemon) Serve(ctx context.Context) error {

	if err := d.conduit.hello(ctx); err != nil {
		return fmt.Errorf("error greeting control core: %v", err)
	}

	path := d.config.Image
	create := d.config.Create

	for {
		if next := d.takeNext(); next != "" {
			path = next
		}

		conclusion, err := d.serveImage(ctx, path, create)
		create = false

		if err != nil {
			if ctx.Err() != nil {
				d.setState(StateStopped)
				return nil
			}
			d.setState(StateFailed)
			return err
		}

		if conclusion == nil { // switched via Load
			continue
		}

		var halt bool
		if path, halt = d.conclude(path, conclusion); halt {
			log.Info("halted by host")
			d.setState(StateHalted)
			return nil
		}
	}
}

//
func (d *Daemon) serveImage(ctx context.Context, path string,
	create bool) ([]byte, error) {

	log.WithField("dir", d.config.PluginDir).Info("loading magic block plugins")
	plugins, err := LoadPlugins(d.config.PluginDir)
	if err != nil {
		return nil, err
	}
	defer plugins.Close()

	img, err := image.Open(path, create)
	if err != nil {
		return nil, fmt.Errorf("error opening image: %v", err)
	}
	defer func() {
		if err := img.Close(); err != nil {
			log.Errorf("error closing image: %v", err)
		}
	}()

	flusher := image.NewFlusher(img,
		time.Duration(d.settings[SettingFlushDelay].Int())*time.Second)
	flusher.Start()
	defer flusher.Stop()

	d.mount(img, flusher, plugins)
	defer d.mount(nil, nil, nil)

	log.WithFields(log.Fields{
		"image":  img.Name(),
		"kind":   img.Kind(),
		"blocks": img.Sectors()}).Info("starting emulation")

	return d.session(ctx)
}

/*
	session serves commands until one concludes the session, and returns the
	conclusion. Failed commands are logged and skipped; the control core
	reports them to the host once it gives up waiting. A nil conclusion
	without error means the session was interrupted by Load.
*/
func (d *Daemon) session(ctx context.Context) ([]byte, error) {

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.setInterrupt(cancel)
	defer d.setInterrupt(nil)

	d.lastData = make([]byte, image.SectorSize)
	d.stats.sessions.Add(1)
	d.setState(StateReady)
	log.Info("ProFile emulator ready")

	for {
		cmd, err := d.conduit.awaitCommand(sctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if sctx.Err() != nil {
				log.Info("session interrupted for image switch")
				return nil, nil
			}
			return nil, err
		}

		d.mutex.Lock()
		d.lastCommand = cmd.String()
		d.mutex.Unlock()

		data, concluded, err := d.execute(ctx, cmd)
		if err != nil {
			d.stats.failed.Add(1)
			log.WithField("command", cmd.String()).Errorf(
				"command failed: %v", err)
			continue
		}
		if concluded {
			return data, nil
		}
	}
}

// execute runs one command, and tells the control core to go ahead when
// the buffers are ready.
func (d *Daemon) execute(ctx context.Context, c command) ([]byte, bool, error) {

	var data []byte
	var concluded bool
	var err error

	switch {
	case c.op() == OpRead:
		data, err = c.get(ctx, d)
	case c.isWrite():
		data, concluded, err = c.put(ctx, d)
	default:
		log.WithField("command", c.String()).Warn(
			"unrecognised command, ignoring")
		d.stats.unknown.Add(1)
	}

	if err != nil {
		return nil, false, err
	}

	if err := d.conduit.goahead(ctx); err != nil {
		return nil, false, err
	}

	if data != nil {
		d.lastData = data
	}
	return data, concluded, nil
}

/*
	Load ends the current session and continues with the image called name
	in the image directory. The name is subject to the same rules as for an
	image switch requested by the host.
*/
func (d *Daemon) Load(name string) error {

	path, ok := d.resolveImage(name)
	if !ok {
		return fmt.Errorf("no usable image '%s' in %s", name, d.imageDir())
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.next = path
	if d.interrupt != nil {
		d.interrupt()
	}

	log.WithField("image", name).Info("LOAD")
	return nil
}

// GetBlock returns the contents of block from the image being served.
func (d *Daemon) GetBlock(block uint32) ([]byte, error) {

	d.mutex.Lock()
	img := d.image
	d.mutex.Unlock()

	if img == nil {
		return nil, fmt.Errorf("no image loaded")
	}
	return img.Get(block)
}

//
func (d *Daemon) GetConfig(item string) (interface{}, error) {
	s, ok := d.settings[item]
	if !ok {
		return nil, fmt.Errorf("unknown config item: %s", item)
	}
	return s.Value(), nil
}

// Settings returns the current values of all settings.
func (d *Daemon) Settings() map[string]interface{} {
	ret := make(map[string]interface{}, len(d.settings))
	for k, s := range d.settings {
		ret[k] = s.Value()
	}
	return ret
}

// SetConfig changes a setting. Booleans are set by arg1 != 0, integers to
// arg1. Changes to the flush delay apply from the next session on.
func (d *Daemon) SetConfig(item string, arg1 byte, arg2 byte) error {

	s, ok := d.settings[item]
	if !ok {
		return fmt.Errorf("unknown config item: %s", item)
	}

	var err error
	if s.IsBool() {
		err = s.Set(arg1 != 0)
	} else {
		err = s.Set(int(arg1))
	}

	if err == nil {
		log.WithFields(log.Fields{"item": item, "value": s}).Info("CONFIG")
	}
	return err
}

//
func (d *Daemon) imageDir() string {
	return d.config.ImageDir
}

//
func (d *Daemon) mount(img *image.Image, f *image.Flusher, p Plugins) {

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.image = img
	d.flusher = f
	d.plugins = p

	if img != nil {
		d.spareTable = SpareTable(img.Size())
	} else {
		d.spareTable = nil
	}
}

//
func (d *Daemon) takeNext() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	ret := d.next
	d.next = ""
	return ret
}

// setInterrupt registers the cancel function of the running session. A
// switch requested while no session was running takes effect right away.
func (d *Daemon) setInterrupt(cancel context.CancelFunc) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.interrupt = cancel
	if cancel != nil && d.next != "" {
		cancel()
	}
}

//
func (d *Daemon) setState(s string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.state = s
}
