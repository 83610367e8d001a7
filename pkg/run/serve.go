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
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	log "github.com/sirupsen/logrus"

	"github.com/cameo-aphid/aphid/pkg/channel"
	"github.com/cameo-aphid/aphid/pkg/control"
	"github.com/cameo-aphid/aphid/pkg/daemon"
	"github.com/cameo-aphid/aphid/pkg/image"
	"github.com/cameo-aphid/aphid/pkg/repo"
	"github.com/cameo-aphid/aphid/pkg/shmem"
	"github.com/cameo-aphid/aphid/pkg/sim"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Runner = *NewRunner(
		`serve -i|--image {image} [-c|--create] [-d|--device {device}]
      [-s|--serial {port}] [-r|--repo {repository}] [-a|--address {address}]`,
		"start the supervisor daemon",
		`
Use the serve command to start the supervisor daemon. It serves the given disk
image to the host via the control core, and offers the control API. The daemon
talks to the control core through the channel device, or a serial port. With
--simulate, a complete drive is simulated in process instead.`,
		"", runnerHelpEpilogue, s.Run)

	s.AddBaseSettings()
	s.AddSetting(&s.Image, "image", "i", "", nil, "disk image to serve", true)
	s.AddSetting(&s.Create, "create", "c", "", false,
		"create a blank 5 MB image if it does not exist", false)
	s.AddSetting(&s.ImageDir, "image-dir", "", "", "",
		"directory of images to switch to, defaults to directory of image", false)
	s.AddSetting(&s.PluginDir, "plugin-dir", "", "", "",
		"directory of magic block plugins, defaults to image directory", false)
	s.AddSetting(&s.Device, "device", "d", "", channel.DefaultDevice,
		"channel device of the control core", false)
	s.AddSetting(&s.Serial, "serial", "s", "", "",
		"serial port leading to the control core, instead of device", false)
	s.AddSetting(&s.Baud, "baud", "b", "", uint(channel.DefaultBaudRate),
		"baud rate for serial port", false)
	s.AddSetting(&s.Simulate, "simulate", "", "", false,
		"simulate the drive in process", false)
	s.AddSetting(&s.Armless, "armless", "", "", false,
		"simulated control core answers without the supervisor", false)
	s.AddSetting(&s.PRUMemory, "pru-memory", "", "", false,
		"offer shared memory of the real PRUs via API, needs root", false)
	s.AddSetting(&s.Repo, "repo", "r", "", "",
		"image repository, enables loading and searching images", false)
	s.AddSetting(&s.Index, "index", "", "", "",
		"location of the search index, defaults to .index in repository", false)
	s.AddSetting(&s.Verify, "verify", "", "", false,
		"verify sectors handed to the control core", false)
	s.AddSetting(&s.FlushDelay, "flush-delay", "", "", image.DefaultFlushDelay,
		"minimum time between two image flushes", false)
	s.AddSetting(&s.ReadDelay, "read-delay", "", "", daemon.DefaultReadDelay,
		"how long to wait for sector data from the control core", false)
	s.AddSetting(&s.StatsView, "statsview", "", "", "",
		"address for serving runtime statistics, e.g. localhost:18066", false)

	return s
}

//
type Serve struct {
	Runner
	//
	Image      string
	Create     bool
	ImageDir   string
	PluginDir  string
	Device     string
	Serial     string
	Baud       uint
	Simulate   bool
	Armless    bool
	PRUMemory  bool
	Repo       string
	Index      string
	Verify     bool
	FlushDelay time.Duration
	ReadDelay  time.Duration
	StatsView  string
}

//
func (s *Serve) Run() error {

	if err := s.ParseSettings(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, region, release, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer release()

	d := daemon.NewDaemon(conn, daemon.Config{
		Image:      s.Image,
		Create:     s.Create,
		ImageDir:   s.ImageDir,
		PluginDir:  s.PluginDir,
		FlushDelay: s.FlushDelay,
		ReadDelay:  s.ReadDelay,
		Verify:     s.Verify,
	})

	var index *repo.Index
	if s.Repo != "" {
		base := s.Index
		if base == "" {
			base = filepath.Join(s.Repo, ".index")
		}
		if index, err = repo.NewIndex(base, s.Repo); err != nil {
			return err
		}
		defer index.Stop()
		if err := index.Start(); err != nil {
			return err
		}
	}

	api := control.NewAPIServer(s.Address, s.Repo, d, region, index)
	go func() {
		if err := api.Serve(); err != nil {
			log.Errorf("API server failed: %v", err)
			stop()
		}
	}()
	defer api.Stop()

	if s.StatsView != "" {
		viewer.SetConfiguration(viewer.WithAddr(s.StatsView))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		log.WithField("url", fmt.Sprintf(
			"http://%s/debug/statsview", s.StatsView)).Info(
			"runtime statistics available")
	}

	err = d.Serve(ctx)
	log.WithField("state", d.Status().State).Info("daemon stopped")
	return err
}

/*
	connect opens the channel to the control core, either of a simulated
	drive, via serial port, or the channel device. Along with the channel,
	it returns the shared memory region to offer via API, if any, and a
	function for releasing everything.
*/
func (s *Serve) connect(ctx context.Context) (channel.Conn,
	control.Snapshotter, func(), error) {

	var region control.Snapshotter
	var unmap func()

	if s.PRUMemory && !s.Simulate {
		phys, err := shmem.MapPhysical()
		if err != nil {
			return nil, nil, nil, err
		}
		region = phys
		unmap = func() { phys.Close() }
	}

	release := func(conn channel.Conn) func() {
		return func() {
			if err := conn.Close(); err != nil {
				log.Errorf("error closing channel: %v", err)
			}
			if unmap != nil {
				unmap()
			}
		}
	}

	switch {

	case s.Simulate:
		cfg := sim.SimConfig()
		cfg.Armless = s.Armless
		drive := sim.NewDrive(cfg)
		dctx, cancel := context.WithCancel(ctx)
		wait := drive.Start(dctx)
		log.Info("simulated drive started")
		conn := drive.Conn()
		return conn, drive.Region, func() {
			cancel()
			wait()
			release(conn)()
		}, nil

	case s.Serial != "":
		conn, err := channel.OpenSerial(s.Serial, s.Baud)
		if err != nil {
			if unmap != nil {
				unmap()
			}
			return nil, nil, nil, err
		}
		return conn, region, release(conn), nil
	}

	conn, err := channel.OpenDevice(s.Device)
	if err != nil {
		if unmap != nil {
			unmap()
		}
		return nil, nil, nil, err
	}
	return conn, region, release(conn), nil
}
